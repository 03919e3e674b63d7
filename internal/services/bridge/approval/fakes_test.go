package approval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/tresorgate/internal/services/bridge/adminapi"
	"github.com/louisbranch/tresorgate/internal/services/bridge/policy"
	"github.com/louisbranch/tresorgate/internal/services/bridge/storage/sqlite"
)

var errRemoteDown = errors.New("remote down")

// fakeRemote records every call and serves canned operation details.
type fakeRemote struct {
	mu        sync.Mutex
	calls     []string
	nextUser  int
	members   map[string][]string
	details   map[string]adminapi.OperationDetails
	failCalls map[string]error
	validated []adminapi.ValidationRequest
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		members:   make(map[string][]string),
		details:   make(map[string]adminapi.OperationDetails),
		failCalls: make(map[string]error),
	}
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failCalls[call]
}

func (f *fakeRemote) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) InitUserRegistration(context.Context) (adminapi.Registration, error) {
	if err := f.record("init"); err != nil {
		return adminapi.Registration{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUser++
	return adminapi.Registration{
		UserID:             fmt.Sprintf("user-%d", f.nextUser),
		RegSessionID:       fmt.Sprintf("session-%d", f.nextUser),
		RegSessionVerifier: fmt.Sprintf("verifier-%d", f.nextUser),
	}, nil
}

func (f *fakeRemote) ValidateUser(_ context.Context, req adminapi.ValidationRequest) error {
	if err := f.record("validate"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, req)
	return nil
}

func (f *fakeRemote) ListTresorMembers(_ context.Context, tresorID string) ([]string, error) {
	if err := f.record("list-members"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.members[tresorID]
	if !ok {
		return nil, errors.New("unknown tresor")
	}
	return append([]string(nil), members...), nil
}

func (f *fakeRemote) ApproveTresorCreation(context.Context, string) error {
	return f.record("approve-tresor-creation")
}

func (f *fakeRemote) RejectTresorCreation(context.Context, string) error {
	return f.record("reject-tresor-creation")
}

func (f *fakeRemote) OperationDetails(_ context.Context, kind adminapi.OperationKind, operationID string) (adminapi.OperationDetails, error) {
	if err := f.record("details-" + string(kind)); err != nil {
		return adminapi.OperationDetails{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	details, ok := f.details[operationID]
	if !ok {
		return adminapi.OperationDetails{}, errors.New("unknown operation")
	}
	return details, nil
}

func (f *fakeRemote) ApproveOperation(_ context.Context, kind adminapi.OperationKind, _ string) error {
	return f.record("approve-" + string(kind))
}

func (f *fakeRemote) RejectOperation(_ context.Context, kind adminapi.OperationKind, _ string) error {
	return f.record("reject-" + string(kind))
}

type testBridge struct {
	*Bridge
	remote *fakeRemote
	store  *sqlite.Store
}

func newTestBridge(t *testing.T, pol policy.Policy) testBridge {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	remote := newFakeRemote()
	clock := time.Date(2024, 3, 5, 6, 8, 9, 0, time.UTC)
	bridge, err := New(Config{
		Remote:     remote,
		Identities: store,
		Tresors:    store,
		Data:       store,
		Policy:     pol,
		Clock:      func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return testBridge{Bridge: bridge, remote: remote, store: store}
}
