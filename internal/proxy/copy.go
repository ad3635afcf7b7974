package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RelayStats counts the bytes a relay moved in each direction.
type RelayStats struct {
	ClientToTarget int64
	TargetToClient int64
}

// Relay copies bytes between client and target until either direction
// ends, then closes both connections. Canceling ctx also closes both.
//
// The returned error is the first failure that was not caused by the
// teardown itself. A clean EOF in either direction is not an error.
func Relay(ctx context.Context, client, target net.Conn, chunkSize int) (RelayStats, error) {
	pool := poolFor(chunkSize)

	var (
		closeOnce sync.Once
		tornDown  atomic.Bool
	)
	closeBoth := func() {
		closeOnce.Do(func() {
			tornDown.Store(true)
			_ = client.Close()
			_ = target.Close()
		})
	}
	defer closeBoth()

	stop := context.AfterFunc(ctx, closeBoth)
	defer stop()

	var (
		stats RelayStats
		g     errgroup.Group
	)

	g.Go(func() error {
		n, err := pump(target, client, pool, &tornDown)
		stats.ClientToTarget = n
		closeBoth()
		return err
	})

	g.Go(func() error {
		n, err := pump(client, target, pool, &tornDown)
		stats.TargetToClient = n
		closeBoth()
		return err
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return stats, err
}

// pump copies src to dst one chunk at a time. Errors seen after the relay
// has been torn down are reported as nil.
func pump(dst io.Writer, src io.Reader, pool *chunkPool, tornDown *atomic.Bool) (int64, error) {
	bp := pool.Get()
	defer pool.Put(bp)
	buf := *bp

	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			if werr == nil && w != n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return total, teardownErr(werr, tornDown)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, teardownErr(rerr, tornDown)
		}
	}
}

func teardownErr(err error, tornDown *atomic.Bool) error {
	if tornDown.Load() {
		return nil
	}
	return err
}
