package magecmd

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TheusHen/mage/mage/mux"
	"github.com/TheusHen/mage/mage/protocol"
)

// NetCat copies in to channel ch of conn and the channel's payloads to out,
// pumping the connection until ctx ends or the remote side goes away.
func NetCat(ctx context.Context, log *zap.Logger, conn *mux.Connection, ch protocol.ChannelID, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	channel := conn.GetChannel(ch)

	// A blocked read on in cannot be interrupted; the reader is abandoned
	// when the connection ends.
	input := make(chan []byte)
	go func() {
		defer close(input)
		buf := make([]byte, 4096)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case input <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn("input failed", zap.Error(err))
				}
				return
			}
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		for ctx.Err() == nil {
			if err := conn.ChannelLoop(); err != nil {
				if errors.Is(err, io.EOF) {
					log.Info("remote closed the connection")
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		return nil
	})
	eg.Go(func() error {
		for {
			select {
			case data, ok := <-input:
				if !ok {
					return nil
				}
				if err := channel.Send(ctx, data); err != nil {
					return quiet(err)
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	eg.Go(func() error {
		for {
			data, err := channel.Recv(ctx)
			if err != nil {
				return quiet(err)
			}
			if _, err := out.Write(data); err != nil {
				return errors.Wrap(err, "output")
			}
		}
	})
	return eg.Wait()
}

// quiet drops the errors that only mean the session is over.
func quiet(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, mux.ErrClosed) {
		return nil
	}
	return err
}
