package seqlock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1000}
}

func TestMirrorRoundTrip(t *testing.T) {
	m := NewMirror(64)
	in := make([]byte, 64)
	for i := range in {
		in[i] = byte(i)
	}

	m.Write(in)

	out := make([]byte, 64)
	require.NoError(t, m.Read(out, fastPolicy()))
	require.Equal(t, in, out)
	require.Equal(t, uint64(2), m.Generation())
}

func TestMirrorGenerationOddDuringWriteRetries(t *testing.T) {
	m := NewMirror(8)
	m.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	m.generation.Store(m.generation.Load() + 1) // simulate a writer mid-publish

	out := make([]byte, 8)
	err := m.Read(out, RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Microsecond, MaxBackoff: time.Microsecond})
	require.ErrorIs(t, err, ErrBusy)

	stats := m.Stats()
	require.Equal(t, uint64(1), stats.Reads)
	require.Equal(t, uint64(3), stats.Retries)
}

func TestMirrorClampsOversizeAllocation(t *testing.T) {
	m := NewMirror(MaxMirrorSize * 2)
	require.Len(t, m.data, MaxMirrorSize)
}

func TestMirrorConcurrentReadersNoTornReads(t *testing.T) {
	m := NewMirror(64)
	initial := make([]byte, 64)
	for i := range initial {
		initial[i] = 0xAA
	}
	m.Write(initial)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// One writer alternates between two distinguishable, internally
	// consistent payloads.
	wg.Add(1)
	go func() {
		defer wg.Done()
		a := make([]byte, 64)
		b := make([]byte, 64)
		for i := range a {
			a[i] = 0x11
			b[i] = 0x22
		}
		toggle := false
		for {
			select {
			case <-stop:
				return
			default:
			}
			if toggle {
				m.Write(a)
			} else {
				m.Write(b)
			}
			toggle = !toggle
		}
	}()

	readers := 64
	wg.Add(readers)
	for range readers {
		go func() {
			defer wg.Done()
			out := make([]byte, 64)
			for range 2000 {
				if err := m.Read(out, DefaultRetryPolicy()); err != nil {
					continue
				}
				first := out[0]
				for _, b := range out {
					require.Equal(t, first, b, "torn read observed: mixed payload bytes")
				}
			}
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestVersionedMirrorVersionIncrementsEvenOnIdenticalPayload(t *testing.T) {
	m := NewVersionedMirror(4)
	payload := []byte{9, 9, 9, 9}

	m.Write(payload)
	v1 := m.Version()
	m.Write(payload)
	v2 := m.Version()

	require.Equal(t, v1+1, v2)
}

func TestVersionedMirrorRoundTrip(t *testing.T) {
	m := NewVersionedMirror(16)
	in := make([]byte, 16)
	for i := range in {
		in[i] = byte(i * 3)
	}
	m.Write(in)

	out := make([]byte, 16)
	require.NoError(t, m.Read(out, fastPolicy()))
	require.Equal(t, in, out)
}
