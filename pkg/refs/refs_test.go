package refs

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/geogot/pkg/object"
)

func hash(i int) object.Hash { return object.Hash(fmt.Sprintf("%064x", i)) }

func stores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{"file": fs, "memory": NewMemoryStore()}
}

func TestCompareAndSwap(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CompareAndSwap("refs/heads/main", "", hash(1), "create"))

			err := s.CompareAndSwap("refs/heads/main", "", hash(2), "create again")
			require.ErrorIs(t, err, ErrCASMismatch)

			err = s.CompareAndSwap("refs/heads/main", hash(9), hash(2), "stale")
			require.ErrorIs(t, err, ErrCASMismatch)

			require.NoError(t, s.CompareAndSwap("refs/heads/main", hash(1), hash(2), "advance"))
			ref, err := s.Read("refs/heads/main")
			require.NoError(t, err)
			assert.Equal(t, hash(2), ref.Target)

			_, err = s.Read("refs/heads/missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCompareAndSwapConcurrentSingleWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			base := hash(1000)
			require.NoError(t, s.CompareAndSwap("refs/heads/main", "", base, "base"))

			const workers = 16
			var wg sync.WaitGroup
			successCh := make(chan object.Hash, workers)
			errCh := make(chan error, workers)
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					next := hash(i + 1)
					if err := s.CompareAndSwap("refs/heads/main", base, next, "race"); err != nil {
						errCh <- err
						return
					}
					successCh <- next
				}()
			}
			wg.Wait()
			close(successCh)
			close(errCh)

			var winners []object.Hash
			for h := range successCh {
				winners = append(winners, h)
			}
			require.Len(t, winners, 1)
			for err := range errCh {
				require.True(t, errors.Is(err, ErrCASMismatch), "unexpected error: %v", err)
			}

			got, err := Resolve(s, "main")
			require.NoError(t, err)
			assert.Equal(t, winners[0], got)
		})
	}
}

func TestSymbolicResolution(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetSymbolic(Head, "refs/heads/main"))
			target, err := Symref(s, Head)
			require.NoError(t, err)
			assert.Equal(t, "refs/heads/main", target)

			_, err = Resolve(s, Head)
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.CompareAndSwap("refs/heads/main", "", hash(1), "init"))
			require.NoError(t, s.CompareAndSwap("refs/tags/v1", "", hash(2), "tag"))
			for in, want := range map[string]object.Hash{Head: hash(1), "main": hash(1), "v1": hash(2), "refs/tags/v1": hash(2)} {
				got, err := Resolve(s, in)
				require.NoError(t, err, in)
				assert.Equal(t, want, got, in)
			}

			err = s.CompareAndSwap(Head, "", hash(3), "detach")
			assert.ErrorIs(t, err, ErrSymbolic)
		})
	}
}

func TestListAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetSymbolic(Head, "refs/heads/main"))
			require.NoError(t, Set(s, "refs/heads/main", hash(1), "init"))
			require.NoError(t, Set(s, "refs/heads/topic/a", hash(2), "branch"))
			require.NoError(t, Set(s, "refs/tags/v1", hash(3), "tag"))

			heads, err := s.List(HeadsPrefix)
			require.NoError(t, err)
			require.Len(t, heads, 2)
			assert.Equal(t, "refs/heads/main", heads[0].Name)
			assert.Equal(t, "refs/heads/topic/a", heads[1].Name)

			all, err := s.List("")
			require.NoError(t, err)
			assert.Len(t, all, 4)

			require.ErrorIs(t, s.Delete("refs/heads/topic/a", hash(9)), ErrCASMismatch)
			require.NoError(t, s.Delete("refs/heads/topic/a", hash(2)))
			require.ErrorIs(t, s.Delete("refs/heads/topic/a", ""), ErrNotFound)
		})
	}
}

func TestReflog(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CompareAndSwap("refs/heads/main", "", hash(1), "commit: first"))
			require.NoError(t, s.CompareAndSwap("refs/heads/main", hash(1), hash(2), "commit: second"))

			entries, err := s.(Reflogger).Reflog("refs/heads/main", 0)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, "commit: second", entries[0].Reason)
			assert.Equal(t, hash(1), entries[0].OldHash)
			assert.True(t, entries[1].OldHash.IsNull())

			limited, err := s.(Reflogger).Reflog("refs/heads/main", 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "/x", "x/", "refs/../x", "refs//x", "refs/heads/a.lock", "a b", "c:d"} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, bad)
	}
	for _, good := range []string{Head, "refs/heads/main", "refs/heads/feature/x-1"} {
		assert.NoError(t, ValidateName(good), good)
	}
}
