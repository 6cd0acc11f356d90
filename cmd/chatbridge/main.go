// Command chatbridge relays chat lines to the public API: "!palpite <valor>"
// becomes a guess and "!time <time>" a tournament pick.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/dom/stream-games/internal/chatcmd"
)

const defaultChatSubject = "chat.messages"

func main() {
	apiURL := flag.String("api", envOr("API_URL", "http://localhost:8080"), "Backend base URL")
	appKey := flag.String("key", os.Getenv("PUBLIC_APP_KEY"), "Public app key")
	natsURL := flag.String("nats", os.Getenv("NATS_URL"), "Read chat from NATS instead of stdin")
	subject := flag.String("subject", envOr("NATS_CHAT_SUBJECT", defaultChatSubject), "NATS subject carrying chat lines")
	flag.Usage = printUsage
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if *appKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --key or PUBLIC_APP_KEY is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := &bridge{client: NewAPIClient(*apiURL, *appKey), logger: logger}

	var err error
	if *natsURL != "" {
		err = b.fromNATS(ctx, *natsURL, *subject)
	} else {
		err = b.fromReader(ctx, bufio.NewScanner(os.Stdin))
	}
	if err != nil {
		logger.Error("bridge stopped", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Chat Bridge - forwards audience commands to the stream games API

USAGE:
  chatbridge [options] < chat.log
  chatbridge --nats=nats://localhost:4222

Each line is "user: message". Recognized commands:
  !palpite <valor>   (also !p)  submit a prediction guess
  !time <time>                  pick a tournament team

OPTIONS:`)
	flag.PrintDefaults()
}

type bridge struct {
	client *APIClient
	logger *slog.Logger
}

func (b *bridge) fromReader(ctx context.Context, sc *bufio.Scanner) error {
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		b.handle(sc.Text())
	}
	return sc.Err()
}

func (b *bridge) fromNATS(ctx context.Context, url, subject string) error {
	nc, err := nats.Connect(url, nats.Name("stream-games-chatbridge"))
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer nc.Drain()

	msgs := make(chan *nats.Msg, 256)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	b.logger.Info("listening for chat", "subject", subject)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgs:
			b.handle(string(msg.Data))
		}
	}
}

func (b *bridge) handle(line string) {
	user, msg, ok := chatcmd.ParseLine(line)
	if !ok {
		return
	}

	cmd := chatcmd.Parse(msg)
	switch cmd.Kind {
	case chatcmd.KindGuess:
		res, err := b.client.SubmitGuess(user, cmd.Arg)
		if err != nil {
			b.logger.Warn("guess rejected", "user", user, "arg", cmd.Arg, "error", err)
			return
		}
		b.logger.Info("guess accepted", "user", res.Entry.User, "value_cents", res.Entry.ValueCents, "total", res.Total)
	case chatcmd.KindJoin:
		res, err := b.client.Join(user, cmd.Arg)
		if err != nil {
			b.logger.Warn("join rejected", "user", user, "arg", cmd.Arg, "error", err)
			return
		}
		b.logger.Info("join accepted", "user", user, "team", res.TeamName, "phase", res.Phase)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
