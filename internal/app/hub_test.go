package app

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"consent/internal/domain"
)

func newTestHub(t *testing.T) *ElectionHub {
	t.Helper()
	hub := NewElectionHub(HubOptions{}, testLogger())
	t.Cleanup(hub.Close)
	return hub
}

func currentPhase(t *testing.T, hub *ElectionHub, id string) domain.Phase {
	t.Helper()
	snap, err := hub.Snapshot(id)
	require.NoError(t, err)
	return snap.Phase
}

func TestCreateElection(t *testing.T) {
	hub := newTestHub(t)

	id, err := hub.CreateElection("Facilitator", []string{"B", "A", "A", ""})
	require.NoError(t, err)
	require.Len(t, id, DefaultIDLength)
	for _, c := range id {
		require.True(t, strings.ContainsRune(IDChars, c), "unexpected id char %q", c)
	}

	snap, err := hub.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, id, snap.ID)
	require.Equal(t, "Facilitator", snap.ElectedRole)
	require.Equal(t, domain.PhaseFirstVote, snap.Phase)
	require.Equal(t, []domain.Nominee{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}}, snap.Nominees)
	require.Equal(t, 1, hub.ElectionCount())
}

func TestCreateElectionUniqueIDs(t *testing.T) {
	hub := newTestHub(t)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := hub.CreateElection("Role", []string{"A"})
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCreateElectionNoNominees(t *testing.T) {
	hub := newTestHub(t)
	_, err := hub.CreateElection("Role", []string{"", " "})
	require.ErrorIs(t, err, domain.ErrNoNominees)
	require.Equal(t, 0, hub.ElectionCount())
}

func TestCreateElectionLimit(t *testing.T) {
	hub := NewElectionHub(HubOptions{MaxElections: 1}, testLogger())
	defer hub.Close()

	_, err := hub.CreateElection("Role", []string{"A"})
	require.NoError(t, err)
	_, err = hub.CreateElection("Role", []string{"A"})
	require.ErrorIs(t, err, domain.ErrRegistryFull)
}

func TestElectionNotFound(t *testing.T) {
	hub := newTestHub(t)

	_, err := hub.Snapshot("missing")
	require.ErrorIs(t, err, domain.ErrElectionNotFound)
	require.ErrorIs(t, hub.CastVote("missing", "x", 0), domain.ErrElectionNotFound)
	require.ErrorIs(t, hub.RequestTransition("missing", "FirstVote", "next"), domain.ErrElectionNotFound)
	_, err = hub.Subscribe("missing")
	require.ErrorIs(t, err, domain.ErrElectionNotFound)
	require.ErrorIs(t, hub.WithElection("missing", func(*domain.Election) error { return nil }), domain.ErrElectionNotFound)
}

func TestWithElectionReturnsOpResult(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A"})

	var phase domain.Phase
	require.NoError(t, hub.WithElection(id, func(e *domain.Election) error {
		phase = e.Phase()
		return nil
	}))
	require.Equal(t, domain.PhaseFirstVote, phase)

	boom := fmt.Errorf("boom")
	require.ErrorIs(t, hub.WithElection(id, func(*domain.Election) error { return boom }), boom)
}

func TestCastVoteValidation(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A", "B"})

	require.ErrorIs(t, hub.CastVote(id, "  ", 0), domain.ErrEmptyVoterName)
	require.ErrorIs(t, hub.CastVote(id, "x", 2), domain.ErrUnknownNominee)

	snap, _ := hub.Snapshot(id)
	require.Empty(t, snap.Tally.Voters)
}

func TestCastVoteOutsideVotePhaseIsDropped(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A", "B"})
	require.NoError(t, hub.CastVote(id, "x", 0))
	require.NoError(t, hub.RequestTransition(id, "FirstVote", "next"))

	sub, err := hub.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.CastVote(id, "y", 1), "off-phase votes are not errors")
	require.Equal(t, domain.EventVotesChanged, (<-sub.Events()).Type)

	snap, _ := hub.Snapshot(id)
	require.Equal(t, []string{"x"}, snap.Tally.Voters)
}

func TestRequestTransitionInputErrors(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A"})

	require.ErrorIs(t, hub.RequestTransition(id, "FirstVote", "jump"), domain.ErrInvalidDirection)
	require.ErrorIs(t, hub.RequestTransition(id, "Lobby", "next"), domain.ErrUnknownPhase)
	require.Equal(t, domain.PhaseFirstVote, currentPhase(t, hub, id))
}

func TestRequestTransitionPhaseConflict(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A", "B"})
	require.NoError(t, hub.CastVote(id, "x", 0))

	sub, _ := hub.Subscribe(id)
	defer sub.Close()

	for _, dir := range []string{"next", "prev", "reset"} {
		err := hub.RequestTransition(id, "SecondVote", dir)
		require.ErrorIs(t, err, domain.ErrPhaseConflict)
	}

	snap, _ := hub.Snapshot(id)
	require.Equal(t, domain.PhaseFirstVote, snap.Phase)
	require.Equal(t, []string{"x"}, snap.Tally.Voters)

	select {
	case ev := <-sub.Events():
		t.Fatalf("conflict must not publish, got %v", ev)
	default:
	}
}

func TestRequestTransitionReset(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A", "B"})
	require.NoError(t, hub.CastVote(id, "x", 0))

	require.NoError(t, hub.RequestTransition(id, "FirstVote", "reset"))

	snap, _ := hub.Snapshot(id)
	require.Equal(t, domain.PhaseFirstVote, snap.Phase)
	require.Empty(t, snap.Tally.Voters)
}

func TestStaleClientsRacingOnTransition(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A"})

	// many clients rendered FirstVote and all press "next" at once
	const clients = 20
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- hub.RequestTransition(id, "FirstVote", "next")
		}()
	}
	wg.Wait()
	close(errs)

	applied := 0
	for err := range errs {
		if err == nil {
			applied++
			continue
		}
		require.ErrorIs(t, err, domain.ErrPhaseConflict)
	}
	require.Equal(t, 1, applied)
	require.Equal(t, domain.PhaseFirstTally, currentPhase(t, hub, id))
}

func TestConcurrentVotes(t *testing.T) {
	hub := newTestHub(t)
	id, _ := hub.CreateElection("Role", []string{"A", "B", "C"})

	const voters = 50
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, hub.CastVote(id, fmt.Sprintf("voter-%02d", i), uint64(i%3)))
			_, err := hub.Snapshot(id)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.NoError(t, hub.RequestTransition(id, "FirstVote", "next"))
	snap, err := hub.Snapshot(id)
	require.NoError(t, err)
	require.Equal(t, voters, snap.Tally.VoteCount)
	require.Equal(t, []domain.Result{
		{Name: "B", Count: 17},
		{Name: "A", Count: 17},
		{Name: "C", Count: 16},
	}, snap.Tally.Results)
}

func TestEndToEnd(t *testing.T) {
	hub := newTestHub(t)

	id, err := hub.CreateElection("Delegate", []string{"B", "A", "A"})
	require.NoError(t, err)

	sub, err := hub.Subscribe(id)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.CastVote(id, "x", 0))
	require.NoError(t, hub.CastVote(id, "y", 1))
	require.NoError(t, hub.CastVote(id, "z", 0))
	for i := 0; i < 3; i++ {
		require.Equal(t, domain.EventVotesChanged, (<-sub.Events()).Type)
	}

	var tally domain.Tally
	require.NoError(t, hub.WithElection(id, func(e *domain.Election) error {
		var err error
		tally, err = e.Tally()
		return err
	}))
	require.Equal(t, domain.Tally{{Name: "A", Count: 2}, {Name: "B", Count: 1}}, tally)

	require.NoError(t, hub.RequestTransition(id, "FirstVote", "next"))

	select {
	case ev := <-sub.Events():
		require.Equal(t, domain.EventPhaseChanged, ev.Type)
		require.Equal(t, id, ev.ElectionID)
	case <-time.After(time.Second):
		t.Fatal("no phase_changed event")
	}
	require.Equal(t, domain.PhaseFirstTally, currentPhase(t, hub, id))
}

func TestElectionsAreIndependent(t *testing.T) {
	hub := newTestHub(t)
	id1, _ := hub.CreateElection("Role", []string{"A"})
	id2, _ := hub.CreateElection("Role", []string{"A"})

	sub2, _ := hub.Subscribe(id2)
	defer sub2.Close()

	require.NoError(t, hub.RequestTransition(id1, "FirstVote", "next"))
	require.Equal(t, domain.PhaseFirstVote, currentPhase(t, hub, id2))

	select {
	case ev := <-sub2.Events():
		t.Fatalf("event leaked across elections: %v", ev)
	default:
	}
}

func TestRemoveIdle(t *testing.T) {
	hub := NewElectionHub(HubOptions{IdleTimeout: time.Hour}, testLogger())
	defer hub.Close()

	idle, _ := hub.CreateElection("Role", []string{"A"})
	watched, _ := hub.CreateElection("Role", []string{"A"})
	sub, _ := hub.Subscribe(watched)
	defer sub.Close()

	require.Equal(t, 0, hub.removeIdle(time.Now()))
	require.Equal(t, 1, hub.removeIdle(time.Now().Add(2*time.Hour)))

	_, err := hub.Snapshot(idle)
	require.ErrorIs(t, err, domain.ErrElectionNotFound)
	_, err = hub.Snapshot(watched)
	require.NoError(t, err)
}

func TestHubClose(t *testing.T) {
	hub := NewElectionHub(HubOptions{}, testLogger())
	id, _ := hub.CreateElection("Role", []string{"A"})
	sub, _ := hub.Subscribe(id)
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Close()
	hub.Close()

	_, open := <-sub.Events()
	require.False(t, open)
	require.Equal(t, 0, hub.ElectionCount())
}
