package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/vibepilot/agentd/internal/pty"
)

// Client talks to a running daemon's control socket.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient creates a Client dialing socketPath for every request.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return net.Dial("unix", socketPath)
				},
			},
		},
	}
}

// Status fetches the daemon's current counters.
func (c *Client) Status() (*statusResponse, error) {
	resp, err := c.get("/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// ListSessions fetches the daemon's live PTY sessions.
func (c *Client) ListSessions() ([]pty.SessionInfo, error) {
	resp, err := c.get("/sessions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	var sessions []pty.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return sessions, nil
}

// Input sends keystrokes to sessionID's shell.
func (c *Client) Input(sessionID string, data []byte) error {
	body, err := json.Marshal(inputRequest{Data: string(data)})
	if err != nil {
		return err
	}
	resp, err := c.post("/sessions/"+sessionID+"/input", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusOK)
}

// Resize resizes sessionID's PTY window.
func (c *Client) Resize(sessionID string, cols, rows int) error {
	body, err := json.Marshal(resizeRequest{Cols: cols, Rows: rows})
	if err != nil {
		return err
	}
	resp, err := c.post("/sessions/"+sessionID+"/resize", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, http.StatusOK)
}

func (c *Client) get(path string) (*http.Response, error) {
	return c.http.Get("http://agentd" + path)
}

func (c *Client) post(path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return c.http.Post("http://agentd"+path, "application/json", r)
}

func checkStatus(resp *http.Response, expected int) error {
	if resp.StatusCode == expected {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
}
