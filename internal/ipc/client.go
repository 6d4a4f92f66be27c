package ipc

import (
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
	if err := c.client.Call("Paddock.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionsList returns bundle rows optionally filtered by statuses.
func (c *Client) SessionsList(statuses []string) (*SessionsListResponse, error) {
	var resp SessionsListResponse
	req := SessionsListRequest{Statuses: statuses}
	if err := c.client.Call("Paddock.SessionsList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry retries failed bundles.
func (c *Client) Retry(sessionKeys []string) (*RetryResponse, error) {
	var resp RetryResponse
	req := RetryRequest{SessionKeys: sessionKeys}
	if err := c.client.Call("Paddock.Retry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearDone removes done bundle rows.
func (c *Client) ClearDone() (*ClearDoneResponse, error) {
	var resp ClearDoneResponse
	if err := c.client.Call("Paddock.ClearDone", ClearDoneRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
