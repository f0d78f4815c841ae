package magecmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TheusHen/mage/mage"
	"github.com/TheusHen/mage/mage/config"
	"github.com/TheusHen/mage/mage/metrics"
	"github.com/TheusHen/mage/mage/protocol"
)

type overrides struct {
	addr      *string
	remoteKey *string
	channel   *uint8
	transport *string
}

func flagOverrides(cmd *cobra.Command) overrides {
	return overrides{
		addr:      cmd.Flags().StringP("addr", "a", "", "address to dial or listen on"),
		remoteKey: cmd.Flags().StringP("remote-key", "r", "", "hex public key of the peer"),
		channel:   cmd.Flags().Uint8("channel", 0, "channel to read and write"),
		transport: cmd.Flags().StringP("transport", "t", "", "tcp or quic"),
	}
}

func (o overrides) apply(cmd *cobra.Command, cfg *config.Config) error {
	if *o.addr != "" {
		cfg.Address = *o.addr
	}
	if *o.remoteKey != "" {
		cfg.RemoteKey = *o.remoteKey
	}
	if cmd.Flags().Changed("channel") {
		cfg.Channel = *o.channel
	}
	if *o.transport != "" {
		cfg.Transport = *o.transport
	}
	return cfg.Validate()
}

func newPeer(cfg config.Config, log *zap.Logger) (*mage.Peer, error) {
	id, err := cfg.Identity()
	if err != nil {
		return nil, err
	}
	tr, err := mage.NewTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}
	return mage.NewPeer(id, tr, log, cfg.MuxOptions(log)...), nil
}

// serveMetrics exposes the peer's connections when metrics_address is set.
func serveMetrics(ctx context.Context, cfg config.Config, peer *mage.Peer, log *zap.Logger) {
	if cfg.MetricsAddress == "" {
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(peer.Connections()))
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddress, reg, log); err != nil {
			log.Warn("metrics stopped", zap.Error(err))
		}
	}()
}

func NewDialCmd(loadConfig ConfigLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dial",
		Short: "connects to a listening peer and bridges stdio to a channel",
		Args:  cobra.NoArgs,
	}
	o := flagOverrides(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()
		cfg.Role = config.RoleClient
		if err := o.apply(cmd, &cfg); err != nil {
			return err
		}
		remote, err := cfg.Remote()
		if err != nil {
			return err
		}
		peer, err := newPeer(cfg, log)
		if err != nil {
			return err
		}
		defer peer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		serveMetrics(ctx, cfg, peer, log)
		conn, err := peer.Dial(ctx, cfg.Address, protocol.ConnectionID(cfg.ConnectionID), remote)
		if err != nil {
			return err
		}
		return NetCat(ctx, log, conn, protocol.ChannelID(cfg.Channel), cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return cmd
}

func NewListenCmd(loadConfig ConfigLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "accepts one peer and bridges stdio to a channel",
		Args:  cobra.NoArgs,
	}
	o := flagOverrides(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()
		cfg.Role = config.RoleServer
		if err := o.apply(cmd, &cfg); err != nil {
			return err
		}
		remote, err := cfg.Remote()
		if err != nil {
			return errors.WithMessage(err, "the client's public key is required")
		}
		peer, err := newPeer(cfg, log)
		if err != nil {
			return err
		}
		defer peer.Close()
		if err := peer.Listen(cfg.Address); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		serveMetrics(ctx, cfg, peer, log)
		conn, err := peer.Accept(ctx, remote)
		if err != nil {
			return err
		}
		return NetCat(ctx, log, conn, protocol.ChannelID(cfg.Channel), cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return cmd
}
