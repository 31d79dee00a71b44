package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/rtc"
	sig "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errRelayClosed = errors.New("relay connection closed")

func newPeerCmd() *cobra.Command {
	var (
		url     string
		room    string
		stun    []string
		retries int
		backoff time.Duration
	)
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Join a room and exchange lines with its peers over data channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(nil)
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg := rtc.DefaultWebRTCConfig()
			if cmd.Flags().Changed("stun") {
				cfg.ICEServers = nil
				if len(stun) > 0 {
					cfg.ICEServers = []webrtc.ICEServer{{URLs: stun}}
				}
			}
			return runPeer(ctx, url, room, rtc.PeerOptions{
				Config:     cfg,
				MaxRetries: retries,
				Backoff:    backoff,
				OnMessage: func(from string, data []byte) {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", short(from), data)
				},
				OnState: func(remote string, s rtc.State) {
					log.Info().Str("remote", short(remote)).Stringer("state", s).Msg("peer")
				},
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:5000/api/ws/signal", "relay endpoint")
	cmd.Flags().StringVar(&room, "room", "", "room id to join")
	cmd.Flags().StringSliceVar(&stun, "stun", nil, "STUN server URLs (default stun:stun.l.google.com:19302)")
	cmd.Flags().IntVar(&retries, "retries", rtc.DefaultMaxRetries, "reconnect attempts before a peer is marked failed")
	cmd.Flags().DurationVar(&backoff, "backoff", time.Second, "delay before each reconnect")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func runPeer(ctx context.Context, url, room string, opts rtc.PeerOptions) error {
	client, err := sig.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	mesh := rtc.NewMesh(room, client, opts)
	defer mesh.Close()

	if err := client.Join(room); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-client.Incoming():
			if !ok {
				return errRelayClosed
			}
			if err := mesh.Handle(s); err != nil {
				log.Warn().Err(err).Str("type", string(s.Type)).Msg("handle signal")
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if n := mesh.Broadcast([]byte(line)); n == 0 {
				log.Warn().Msg("no open channels")
			}
		}
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
