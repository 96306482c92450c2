package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/iov-one/paystream/amount"
	"github.com/iov-one/paystream/crypto"
	"github.com/iov-one/paystream/errors"
	"github.com/iov-one/paystream/paytest"
	"github.com/iov-one/paystream/store"
	"github.com/iov-one/paystream/x/paychan"
)

// fakeBackend is an in-memory ledger client.
type fakeBackend struct {
	mu          sync.Mutex
	channels    map[string]*paychan.Channel
	settlements []settlementCall
	submitErr   error
	verifyErr   error
	verifyCalls int
}

type settlementCall struct {
	ChannelID string
	Amount    amount.Amount
	Signature []byte
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend(channels ...*paychan.Channel) *fakeBackend {
	b := &fakeBackend{channels: make(map[string]*paychan.Channel)}
	for _, c := range channels {
		b.channels[c.ID] = c
	}
	return b
}

func (b *fakeBackend) VerifyClaim(ctx context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (bool, error) {
	b.mu.Lock()
	b.verifyCalls++
	err := b.verifyErr
	b.mu.Unlock()
	if err != nil {
		return false, err
	}
	return paychan.VerifyClaim(channelID, amt, sig, pub), nil
}

func (b *fakeBackend) ChannelInfo(ctx context.Context, channelID string) (*paychan.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.channels[channelID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "channel %s", channelID)
	}
	return c, nil
}

func (b *fakeBackend) SubmitSettlement(ctx context.Context, channelID string, amt amount.Amount, sig []byte, pub *crypto.PublicKey) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitErr != nil {
		return "", b.submitErr
	}
	if !paychan.VerifyClaim(channelID, amt, sig, pub) {
		return "", errors.Wrap(errors.ErrInvalidSignature, "ledger rejected claim")
	}
	b.settlements = append(b.settlements, settlementCall{ChannelID: channelID, Amount: amt, Signature: sig})
	return fmt.Sprintf("TX%d", len(b.settlements)), nil
}

func (b *fakeBackend) submitted() []settlementCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]settlementCall(nil), b.settlements...)
}

func testChannel(n int, key *crypto.PrivateKey, capacity uint64) *paychan.Channel {
	return &paychan.Channel{
		ID:              paytest.ChannelID(n),
		SenderAddress:   key.PublicKey().Address(),
		ReceiverAddress: paytest.SeedKey(0xff).PublicKey().Address(),
		SenderPublicKey: key.PublicKey(),
		Capacity:        amount.New(capacity),
	}
}

func newTestLedger(clock *paytest.FakeClock) *paychan.Ledger {
	return paychan.NewLedger(store.NewMemStore(), clock, 0)
}

func mustSign(key *crypto.PrivateKey, channelID string, amt uint64) []byte {
	sig, err := paychan.SignClaim(channelID, amount.New(amt), key)
	if err != nil {
		panic(err)
	}
	return sig
}

// flakyStore fails all writes while broken is set.
type flakyStore struct {
	store.KVStore

	mu     sync.Mutex
	broken bool
}

func (s *flakyStore) setBroken(broken bool) {
	s.mu.Lock()
	s.broken = broken
	s.mu.Unlock()
}

func (s *flakyStore) Set(key, value []byte) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.ErrDatabase.New("disk full")
	}
	return s.KVStore.Set(key, value)
}

// gateStore blocks the first read made after arm was called until release
// is closed. entered is closed once that read started.
type gateStore struct {
	store.KVStore

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (s *gateStore) arm() {
	s.mu.Lock()
	s.armed = true
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
	s.mu.Unlock()
}

func (s *gateStore) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	armed := s.armed
	s.armed = false
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if armed {
		close(entered)
		<-release
	}
	return s.KVStore.Get(key)
}
