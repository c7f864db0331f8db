package main

import (
	"context"
	"errors"
	"strings"

	"greylit/internal/api"
	"greylit/internal/ipc"
	"greylit/internal/store"
)

// readAPI is the read-only view the inspection commands render from. It is
// served over IPC when the daemon is up and straight from the database when
// it is not, so `sessions`, `runs`, `run`, and `results` keep working while
// the daemon is stopped.
type readAPI interface {
	Sessions(ctx context.Context) ([]api.Session, error)
	Runs(ctx context.Context, sessionID int64) ([]api.Run, error)
	DescribeRun(ctx context.Context, id int64) (*api.Run, error)
	SessionResults(ctx context.Context, sessionID int64) (*api.SessionResults, error)
}

// withReadAPI dials the daemon first and falls back to opening the database
// directly when the socket is unreachable.
func (c *commandContext) withReadAPI(ctx context.Context, fn func(context.Context, readAPI) error) error {
	client, err := c.dialClient()
	if err == nil {
		defer client.Close()
		return fn(ctx, &readIPCAdapter{client: client})
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	st, openErr := store.Open(cfg)
	if openErr != nil {
		return openErr
	}
	defer st.Close()
	return fn(ctx, &readStoreAdapter{service: api.NewService(st)})
}

// --- IPC adapter ---

type readIPCAdapter struct {
	client *ipc.Client
}

func (a *readIPCAdapter) Sessions(_ context.Context) ([]api.Session, error) {
	resp, err := a.client.ListSessions()
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (a *readIPCAdapter) Runs(_ context.Context, sessionID int64) ([]api.Run, error) {
	resp, err := a.client.ListRuns(sessionID)
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (a *readIPCAdapter) DescribeRun(_ context.Context, id int64) (*api.Run, error) {
	resp, err := a.client.DescribeRun(id)
	if err != nil {
		// net/rpc flattens errors to strings; recover not-found.
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	run := resp.Run
	return &run, nil
}

func (a *readIPCAdapter) SessionResults(_ context.Context, sessionID int64) (*api.SessionResults, error) {
	resp, err := a.client.ListResults(sessionID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	results := resp.Results
	return &results, nil
}

// --- Store adapter ---

type readStoreAdapter struct {
	service *api.Service
}

func (a *readStoreAdapter) Sessions(ctx context.Context) ([]api.Session, error) {
	resp, err := a.service.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (a *readStoreAdapter) Runs(ctx context.Context, sessionID int64) ([]api.Run, error) {
	resp, err := a.service.Runs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (a *readStoreAdapter) DescribeRun(ctx context.Context, id int64) (*api.Run, error) {
	run, err := a.service.DescribeRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return run, err
}

func (a *readStoreAdapter) SessionResults(ctx context.Context, sessionID int64) (*api.SessionResults, error) {
	results, err := a.service.SessionResults(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return results, err
}
