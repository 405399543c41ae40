package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/config"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/session"
	"github.com/BioHazard786/sensorlink/internal/transport"
	"github.com/BioHazard786/sensorlink/internal/ui"
)

// connectionFlags are shared by both peer commands.
type connectionFlags struct {
	domain   string
	token    string
	format   string
	insecure bool
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.domain, "domain", "", "Broker domain, optionally with port")
	cmd.Flags().StringVar(&f.token, "token", "", "Broker access token")
	cmd.Flags().StringVar(&f.format, "format", "", "Wire format: json or msgpack")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Use ws:// and http:// instead of TLS")
}

func (f *connectionFlags) load() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Domain:   f.domain,
		Insecure: f.insecure,
		Token:    f.token,
		Format:   f.format,
	})
	if err != nil {
		return nil, transport.WrapError("load config", err, "check --domain and --format")
	}
	return cfg, nil
}

// PeerContext is one running peer: its session, transport and UI.
type PeerContext struct {
	Session *session.Session
	UI      *ui.SessionUI
	Config  *config.Config
}

// StartPeer builds the transport, UI and session for role and attaches the
// session. Close must be called on the result.
func StartPeer(ctx context.Context, cfg *config.Config, role message.Role, id channel.ID) (*PeerContext, error) {
	logger := slog.Default()

	client := transport.NewClient(cfg.WebSocketURL,
		transport.WithToken(cfg.Token),
		transport.WithCodec(cfg.Codec()),
		transport.WithLogger(logger),
	)

	sessionUI := ui.NewSessionUI(role, id)
	sessionUI.Start()

	s := session.New(role, client, id,
		session.WithLogger(logger),
		session.WithShareBase(cfg.ShareBaseURL),
		session.WithRenderer(sessionUI.Render),
		session.WithErrorObserver(func(err error) {
			logger.Debug("render skipped", "err", err)
		}),
	)

	if err := s.Attach(ctx); err != nil {
		s.Detach()
		sessionUI.Stop()
		return nil, transport.WrapError("connect to broker", err, cfg.WebSocketURL)
	}

	return &PeerContext{Session: s, UI: sessionUI, Config: cfg}, nil
}

// Wait blocks until ctx is done or the user quits the UI.
func (p *PeerContext) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-p.UI.Done():
	}
}

// Close detaches the session, then restores the terminal.
func (p *PeerContext) Close() {
	p.Session.Detach()
	if err := p.UI.Stop(); err != nil {
		slog.Warn("ui exited with error", "err", err)
	}
}
