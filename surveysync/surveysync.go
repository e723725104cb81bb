// Package surveysync keeps a local view of a remote survey and runs the
// survey operations of a participant against it, reporting progress as a
// human readable status. Decryption of totals goes through the decryption
// authorization protocol of package decryptor.
package surveysync

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/encrypted-survey/decryptor"
	"github.com/vocdoni/encrypted-survey/gateway"
	"github.com/vocdoni/encrypted-survey/ledger"
	"github.com/vocdoni/encrypted-survey/log"
	"github.com/vocdoni/encrypted-survey/types"
)

// DefaultInterval is the default polling interval of Start.
const DefaultInterval = 5 * time.Second

var (
	ErrSignerUnavailable = decryptor.ErrSignerUnavailable
	ErrDecryptionFailed  = decryptor.ErrDecryptionFailed
	ErrInvalidWeight     = gateway.ErrInvalidWeight
	ErrTooFewOptions     = ledger.ErrTooFewOptions
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrAlreadyRunning    = errors.New("service already running")
)

// Node is the read side of a survey node.
type Node interface {
	Survey(ctx context.Context, survey common.Address) (*types.SurveyInfo, error)
	HasVoted(ctx context.Context, survey, voter common.Address) (bool, error)
	Events(ctx context.Context, survey common.Address, from uint64) ([]*types.SurveyEvent, error)
}

// Account performs signed survey operations on a node.
type Account interface {
	Address() common.Address
	ConfigureSurvey(ctx context.Context, survey common.Address, question string, options []string) (*ledger.Receipt, error)
	EncryptVote(ctx context.Context, survey common.Address, weight uint64) (types.Handle, []byte, error)
	SubmitVote(ctx context.Context, survey common.Address, option uint32, handle types.Handle, proof []byte) (*ledger.Receipt, error)
	FinalizeSurvey(ctx context.Context, survey common.Address) (*ledger.Receipt, error)
	AllowResultFor(ctx context.Context, survey, grantee common.Address, option uint32) (*ledger.Receipt, error)
}

// Config holds the dependencies of a Client. Account and Signer may be nil
// for a read only view.
type Config struct {
	Node      Node
	Account   Account
	Signer    decryptor.Signer
	Decryptor *decryptor.Decryptor
	Survey    common.Address
	Interval  time.Duration
}

// OptionState is the local view of a survey option.
type OptionState struct {
	Index          uint32
	Label          string
	EncryptedTotal types.Handle
	DecryptedTotal *big.Int
	Decrypting     bool
	Err            string
}

// State is a snapshot of the local view of the survey.
type State struct {
	Survey     common.Address
	Question   string
	Owner      common.Address
	Options    []OptionState
	Configured bool
	Finalized  bool
	IsOwner    bool
	HasVoted   bool
	Submitting bool
	Status     string
}

// Client is the local view of a survey. It is safe for concurrent use.
type Client struct {
	conf Config

	mu      sync.Mutex
	state   State
	nextSeq uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Client for conf.Survey. Call Refresh or Start to load it.
func New(conf Config) (*Client, error) {
	if conf.Node == nil {
		return nil, fmt.Errorf("missing node")
	}
	if conf.Interval <= 0 {
		conf.Interval = DefaultInterval
	}
	return &Client{
		conf:  conf,
		state: State{Survey: conf.Survey},
	}, nil
}

// State returns a snapshot of the local view.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Options = make([]OptionState, len(c.state.Options))
	for i, o := range c.state.Options {
		if o.DecryptedTotal != nil {
			o.DecryptedTotal = new(big.Int).Set(o.DecryptedTotal)
		}
		s.Options[i] = o
	}
	return s
}

// Status returns the last status message.
func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Status
}

func (c *Client) setStatus(msg string) {
	c.mu.Lock()
	c.state.Status = msg
	c.mu.Unlock()
}

// Refresh reloads the survey from the node. Decrypted totals are kept for
// the options whose encrypted total did not change.
func (c *Client) Refresh(ctx context.Context) error {
	info, err := c.conf.Node.Survey(ctx, c.conf.Survey)
	if err != nil {
		c.setStatus(err.Error())
		return err
	}
	voted := false
	if c.conf.Account != nil {
		if voted, err = c.conf.Node.HasVoted(ctx, c.conf.Survey, c.conf.Account.Address()); err != nil {
			log.Warnw("cannot read voter status", "survey", c.conf.Survey.Hex(), "error", err.Error())
			voted = false
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	previous := make(map[uint32]OptionState, len(c.state.Options))
	for _, o := range c.state.Options {
		previous[o.Index] = o
	}
	c.state.Question = info.Question
	c.state.Owner = info.Owner
	c.state.Configured = info.Configured
	c.state.Finalized = info.Finalized
	c.state.HasVoted = voted
	c.state.IsOwner = c.conf.Account != nil && c.conf.Account.Address() == info.Owner
	c.state.Options = make([]OptionState, 0, len(info.Options))
	for _, o := range info.Options {
		opt := OptionState{Index: o.Index, Label: o.Label, EncryptedTotal: o.EncryptedTotal}
		if prev, ok := previous[o.Index]; ok && prev.EncryptedTotal == o.EncryptedTotal {
			opt.DecryptedTotal = prev.DecryptedTotal
		}
		c.state.Options = append(c.state.Options, opt)
	}
	return nil
}

// begin marks the client as submitting. It fails without an account.
func (c *Client) begin(status string) error {
	if c.conf.Account == nil {
		return ErrSignerUnavailable
	}
	c.mu.Lock()
	c.state.Submitting = true
	c.state.Status = status
	c.mu.Unlock()
	return nil
}

// end closes an operation started with begin, setting the final status and
// refreshing the view when the operation succeeded.
func (c *Client) end(ctx context.Context, err error, success string, refresh bool) error {
	if err != nil {
		c.mu.Lock()
		c.state.Submitting = false
		c.state.Status = err.Error()
		c.mu.Unlock()
		return err
	}
	c.mu.Lock()
	c.state.Submitting = false
	c.state.Status = success
	c.mu.Unlock()
	if refresh {
		if err := c.Refresh(ctx); err != nil {
			log.Warnw("cannot refresh survey", "survey", c.conf.Survey.Hex(), "error", err.Error())
		}
	}
	return nil
}

// ConfigureSurvey sets the question and options of the survey.
func (c *Client) ConfigureSurvey(ctx context.Context, question string, options []string) error {
	if len(options) < 2 {
		return ErrTooFewOptions
	}
	if err := c.begin("Configuring survey..."); err != nil {
		return err
	}
	_, err := c.conf.Account.ConfigureSurvey(ctx, c.conf.Survey, question, options)
	return c.end(ctx, err, "Survey configured successfully.", true)
}

// SubmitVote encrypts weight and submits it as a vote for option index.
func (c *Client) SubmitVote(ctx context.Context, index uint32, weight uint64) error {
	if weight == 0 || weight > gateway.MaxWeight {
		return ErrInvalidWeight
	}
	if err := c.begin("Encrypting vote..."); err != nil {
		return err
	}
	handle, proof, err := c.conf.Account.EncryptVote(ctx, c.conf.Survey, weight)
	if err != nil {
		return c.end(ctx, fmt.Errorf("%w: %w", ErrEncryptionFailed, err), "", false)
	}
	c.setStatus("Submitting vote...")
	_, err = c.conf.Account.SubmitVote(ctx, c.conf.Survey, index, handle, proof)
	return c.end(ctx, err, "Vote submitted successfully.", true)
}

// FinalizeSurvey closes the survey.
func (c *Client) FinalizeSurvey(ctx context.Context) error {
	if err := c.begin("Finalizing survey..."); err != nil {
		return err
	}
	_, err := c.conf.Account.FinalizeSurvey(ctx, c.conf.Survey)
	return c.end(ctx, err, "Survey finalized.", true)
}

// AllowResultFor grants grantee, given as a hex address, access to the
// total of option index.
func (c *Client) AllowResultFor(ctx context.Context, grantee string, index uint32) error {
	if !common.IsHexAddress(grantee) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, grantee)
	}
	if err := c.begin("Granting decryption rights..."); err != nil {
		return err
	}
	_, err := c.conf.Account.AllowResultFor(ctx, c.conf.Survey, common.HexToAddress(grantee), index)
	return c.end(ctx, err, "Decryption access granted.", false)
}

// DecryptOption decrypts the current total of option index and stores it
// in the local view. An unknown option or an empty total is 0 and needs
// no signature.
func (c *Client) DecryptOption(ctx context.Context, index uint32) (*big.Int, error) {
	c.mu.Lock()
	var handle types.Handle
	pos := -1
	for i := range c.state.Options {
		if c.state.Options[i].Index == index {
			pos = i
			handle = c.state.Options[i].EncryptedTotal
			c.state.Options[i].Decrypting = true
			c.state.Options[i].Err = ""
		}
	}
	c.mu.Unlock()

	var (
		value *big.Int
		err   error
	)
	switch {
	case pos < 0 || handle.IsZero():
		value = new(big.Int)
	case c.conf.Signer == nil || c.conf.Decryptor == nil:
		err = ErrSignerUnavailable
	default:
		value, err = c.conf.Decryptor.Decrypt(ctx, c.conf.Signer, c.conf.Survey, handle)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// the view may have been refreshed meanwhile
	for i := range c.state.Options {
		o := &c.state.Options[i]
		if o.Index != index || o.EncryptedTotal != handle {
			continue
		}
		o.Decrypting = false
		if err != nil {
			o.Err = err.Error()
		} else {
			o.DecryptedTotal = value
		}
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Start refreshes the view and keeps following the survey events until
// Stop is called or ctx is done.
func (c *Client) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.follow(ctx, c.done)
	return nil
}

// Stop halts the event polling started by Start.
func (c *Client) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
}

func (c *Client) follow(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.conf.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.poll(ctx); err != nil && ctx.Err() == nil {
				log.Warnw("survey polling failed", "survey", c.conf.Survey.Hex(), "error", err.Error())
			}
		}
	}
}

// poll fetches the new events of the survey and refreshes the view if
// there are any.
func (c *Client) poll(ctx context.Context) error {
	c.mu.Lock()
	from := c.nextSeq
	c.mu.Unlock()
	events, err := c.conf.Node.Events(ctx, c.conf.Survey, from)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		log.Debugw("survey event", "survey", c.conf.Survey.Hex(), "seq", ev.Seq, "kind", string(ev.Kind))
	}
	c.mu.Lock()
	c.nextSeq = events[len(events)-1].Seq + 1
	c.mu.Unlock()
	return c.Refresh(ctx)
}
