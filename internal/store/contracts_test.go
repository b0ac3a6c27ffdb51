package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/contract"
	"github.com/roach88/timelock/internal/digest"
)

func TestInsertAndGet(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := createTestContract("alice", "bob", 100, 3_600_000)

			require.NoError(t, s.Insert(ctx, "c1", c, createdEvent("alice", 1000)))

			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, c, got)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInsertDuplicate(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := createTestContract("alice", "bob", 100, 3_600_000)

			require.NoError(t, s.Insert(ctx, "c1", c, createdEvent("alice", 1000)))
			err := s.Insert(ctx, "c1", c, createdEvent("alice", 1001))
			assert.ErrorIs(t, err, ErrDuplicate)

			events, err := s.Events(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, events, 1, "a rejected insert must not append an event")
		})
	}
}

func TestInsertRejectsBrokenRecord(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			both := createTestContract("alice", "bob", 100, 3_600_000)
			both.Withdrawn, both.Refunded = true, true
			assert.ErrorIs(t, s.Insert(ctx, "c1", both, createdEvent("alice", 1)), ErrInvariant)

			upper := createTestContract("alice", "bob", 100, 3_600_000)
			upper.Hashlock = "2BB80D537B1DA3E38BD30361AA855686BDE0EACD7162FEF6A25FE97BF527A25B"
			assert.ErrorIs(t, s.Insert(ctx, "c2", upper, createdEvent("alice", 1)), ErrInvariant)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestUpdateCommitsMutationAndEvent(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			after, err := s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
				c.InFlight = &contract.InFlight{Op: contract.OpClaim, Token: "tok", Since: 2000}
				return &contract.Event{Kind: contract.EventClaimStarted, Caller: "bob", At: 2000}, nil
			})
			require.NoError(t, err)
			require.NotNil(t, after.InFlight)

			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, &contract.InFlight{Op: contract.OpClaim, Token: "tok", Since: 2000}, got.InFlight)

			events, err := s.Events(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, contract.EventCreated, events[0].Kind)
			assert.Equal(t, contract.EventClaimStarted, events[1].Kind)
			assert.Equal(t, int64(1), events[0].Seq)
			assert.Equal(t, int64(2), events[1].Seq)
			assert.Equal(t, "c1", events[1].ContractID)
			assert.Equal(t, digest.MustEventID("c1", "claim_started", 2, 2000, nil), events[1].ID)
		})
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			boom := errors.New("boom")
			_, err := s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
				c.Refunded = true
				return &contract.Event{Kind: contract.EventRefunded}, boom
			})
			assert.Same(t, boom, err, "transition errors are returned unchanged")

			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.False(t, got.Refunded)

			events, err := s.Events(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, events, 1)
		})
	}
}

func TestUpdateNotFound(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			called := false
			_, err := s.Update(context.Background(), "nope", func(c *contract.Contract) (*contract.Event, error) {
				called = true
				return nil, nil
			})
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, called)
		})
	}
}

func TestUpdateEnforcesInvariants(t *testing.T) {
	wrong := "wrong"

	tests := []struct {
		name string
		fn   Transition
	}{
		{"both flags", func(c *contract.Contract) (*contract.Event, error) {
			c.Withdrawn, c.Refunded = true, true
			return nil, nil
		}},
		{"bad preimage", func(c *contract.Contract) (*contract.Event, error) {
			c.Preimage = &wrong
			return nil, nil
		}},
		{"amount change", func(c *contract.Contract) (*contract.Event, error) {
			c.Amount++
			return nil, nil
		}},
	}

	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			for _, tt := range tests {
				_, err := s.Update(ctx, "c1", tt.fn)
				assert.ErrorIs(t, err, ErrInvariant, tt.name)
			}
		})
	}
}

func TestTerminalRecordIsFrozen(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			_, err := s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
				c.Refunded = true
				return &contract.Event{Kind: contract.EventRefunded, Caller: "alice", At: 3_600_000}, nil
			})
			require.NoError(t, err)

			_, err = s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
				c.InFlight = &contract.InFlight{Op: contract.OpRefund, Token: "late"}
				return nil, nil
			})
			assert.ErrorIs(t, err, ErrInvariant)

			// Appending an event without touching the record stays legal.
			_, err = s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
				return &contract.Event{Kind: contract.EventTransferOrphaned, Caller: "bob", At: 3_600_001}, nil
			})
			require.NoError(t, err)

			events, err := s.Events(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, events, 3)
			assert.Equal(t, contract.EventTransferOrphaned, events[2].Kind)
		})
	}
}

func TestListFilters(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "z-first", createTestContract("alice", "bob", 1, 1000), createdEvent("alice", 1)))
			require.NoError(t, s.Insert(ctx, "a-second", createTestContract("alice", "carol", 2, 5000), createdEvent("alice", 2)))
			require.NoError(t, s.Insert(ctx, "m-third", createTestContract("dave", "bob", 3, ^uint64(0)), createdEvent("dave", 3)))

			_, err := s.Update(ctx, "a-second", func(c *contract.Contract) (*contract.Event, error) {
				p := "secret"
				c.Preimage = &p
				c.Withdrawn = true
				return nil, nil
			})
			require.NoError(t, err)

			ids := func(f Filter) []string {
				entries, err := s.List(ctx, f)
				require.NoError(t, err)
				out := []string{}
				for _, e := range entries {
					out = append(out, e.ID)
				}
				return out
			}

			assert.Equal(t, []string{"z-first", "a-second", "m-third"}, ids(Filter{}), "insertion order")
			assert.Equal(t, []string{"z-first", "a-second"}, ids(Filter{Sender: "alice"}))
			assert.Equal(t, []string{"z-first", "m-third"}, ids(Filter{Receiver: "bob"}))
			assert.Equal(t, []string{"z-first", "m-third"}, ids(Filter{Status: StatusActive}))
			assert.Equal(t, []string{"a-second"}, ids(Filter{Status: StatusWithdrawn}))
			assert.Equal(t, []string{}, ids(Filter{Status: StatusRefunded}))
			assert.Equal(t, []string{"z-first"}, ids(Filter{Status: StatusExpired, Now: 1000}))
			assert.Equal(t, []string{}, ids(Filter{Status: StatusExpired, Now: 999}))
			assert.Equal(t, []string{"z-first", "m-third"}, ids(Filter{Status: StatusExpired, Now: ^uint64(0)}))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		})
	}
}

func TestEventsUnknownContract(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			events, err := s.Events(context.Background(), "nope")
			require.NoError(t, err)
			assert.NotNil(t, events)
			assert.Empty(t, events)
		})
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			got.Withdrawn = true

			again, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.False(t, again.Withdrawn)
		})
	}
}

// Concurrent transitions racing to finalize the same record: exactly one
// wins and the flags never end up both set.
func TestConcurrentFinalizationSingleWinner(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, "c1", createTestContract("alice", "bob", 100, 3_600_000), createdEvent("alice", 1000)))

			errTerminal := errors.New("terminal")
			var wg sync.WaitGroup
			wins := make(chan string, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.Update(ctx, "c1", func(c *contract.Contract) (*contract.Event, error) {
						if c.Terminal() {
							return nil, errTerminal
						}
						if i%2 == 0 {
							p := "secret"
							c.Preimage = &p
							c.Withdrawn = true
							return &contract.Event{Kind: contract.EventClaimed, Caller: "bob", At: uint64(i)}, nil
						}
						c.Refunded = true
						return &contract.Event{Kind: contract.EventRefunded, Caller: "alice", At: uint64(i)}, nil
					})
					if err == nil {
						wins <- "win"
					}
				}(i)
			}
			wg.Wait()
			close(wins)

			assert.Len(t, wins, 1)
			got, err := s.Get(ctx, "c1")
			require.NoError(t, err)
			assert.False(t, got.Withdrawn && got.Refunded)
			assert.True(t, got.Terminal())

			events, err := s.Events(ctx, "c1")
			require.NoError(t, err)
			assert.Len(t, events, 2)
		})
	}
}
