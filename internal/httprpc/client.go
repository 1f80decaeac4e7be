package httprpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raftmq/broker/internal/raftnode"
)

// Addr is a peer's address, taken verbatim from the cluster config
// (spec §6.1).
type Addr struct {
	IP   string
	Port int
}

func (a Addr) baseURL() string { return fmt.Sprintf("http://%s:%d", a.IP, a.Port) }

// Client implements raftnode.Transport by POSTing JSON request bodies to
// peer addresses, following spec §6.2's wire contract. Grounded on the
// teacher's net/http + encoding/json idiom in pkg/api/http.go, generalized
// from a client-facing handler to an outbound caller.
type Client struct {
	peers map[int]Addr
	hc    *http.Client
}

// NewClient builds a Client over the given index -> address table.
func NewClient(peers map[int]Addr, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{peers: peers, hc: hc}
}

func (c *Client) post(ctx context.Context, peer int, path string, body, out interface{}) error {
	addr, ok := c.peers[peer]
	if !ok {
		return fmt.Errorf("httprpc: unknown peer %d", peer)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr.baseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httprpc: peer %d returned status %d", peer, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// RequestVote implements raftnode.Transport.
func (c *Client) RequestVote(ctx context.Context, peer int, args *raftnode.RequestVoteArgs) (*raftnode.RequestVoteReply, error) {
	var reply voteReply
	if err := c.post(ctx, peer, "/election/vote", toVoteRequest(args), &reply); err != nil {
		return nil, err
	}
	return &raftnode.RequestVoteReply{Term: reply.Term, VoteGranted: reply.Vote}, nil
}

// AppendEntries implements raftnode.Transport.
func (c *Client) AppendEntries(ctx context.Context, peer int, args *raftnode.AppendEntriesArgs) (*raftnode.AppendEntriesReply, error) {
	var reply appendReply
	if err := c.post(ctx, peer, "/logs/append", toAppendRequest(args), &reply); err != nil {
		return nil, err
	}
	return &raftnode.AppendEntriesReply{Term: reply.Term, Success: reply.Success}, nil
}
