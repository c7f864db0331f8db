package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Greylit.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Process starts a processing run for the given session.
func (c *Client) Process(sessionID int64, force bool) (*ProcessResponse, error) {
	var resp ProcessResponse
	req := ProcessRequest{SessionID: sessionID, Force: force}
	if err := c.client.Call("Greylit.Process", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelRun requests cancellation of a running processing run.
func (c *Client) CancelRun(runID int64) (*CancelRunResponse, error) {
	var resp CancelRunResponse
	req := CancelRunRequest{RunID: runID}
	if err := c.client.Call("Greylit.CancelRun", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DescribeRun returns details for a single run including errors and events.
func (c *Client) DescribeRun(id int64) (*DescribeRunResponse, error) {
	var resp DescribeRunResponse
	req := DescribeRunRequest{ID: id}
	if err := c.client.Call("Greylit.DescribeRun", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns runs, optionally filtered to one session.
func (c *Client) ListRuns(sessionID int64) (*ListRunsResponse, error) {
	var resp ListRunsResponse
	req := ListRunsRequest{SessionID: sessionID}
	if err := c.client.Call("Greylit.ListRuns", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListSessions returns all review sessions.
func (c *Client) ListSessions() (*ListSessionsResponse, error) {
	var resp ListSessionsResponse
	if err := c.client.Call("Greylit.ListSessions", ListSessionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListResults returns processed results for a session.
func (c *Client) ListResults(sessionID int64) (*ListResultsResponse, error) {
	var resp ListResultsResponse
	req := ListResultsRequest{SessionID: sessionID}
	if err := c.client.Call("Greylit.ListResults", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImportResults loads raw search results into a session.
func (c *Client) ImportResults(sessionID int64, sessionName string, payload json.RawMessage) (*ImportResultsResponse, error) {
	var resp ImportResultsResponse
	req := ImportResultsRequest{SessionID: sessionID, SessionName: sessionName, Payload: payload}
	if err := c.client.Call("Greylit.ImportResults", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Greylit.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
