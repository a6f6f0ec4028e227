// Command tlectl pushes element sets to a running tracker and queries it
// over MQTT.
//
//	tlectl [-broker host:port] [-timeout 5s] push <file>
//	tlectl [-broker host:port] [-timeout 5s] position
//	tlectl [-broker host:port] [-timeout 5s] last-update
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/star/tletracker/internal/tle"
	"github.com/star/tletracker/internal/tracker"
)

var errTimeout = errors.New("no response before timeout")

// query pairs a request topic with the topic its answer arrives on.
type query struct {
	request  string
	response string
}

var queries = map[string]query{
	"position":    {tracker.TopicPositionRequest, tracker.TopicPosition},
	"last-update": {tracker.TopicLastUpdateRequest, tracker.TopicLastUpdate},
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fs := flag.NewFlagSet("tlectl", flag.ExitOnError)
	broker := fs.String("broker", "localhost:1883", "MQTT broker host:port")
	timeout := fs.Duration("timeout", 5*time.Second, "how long to wait for the broker and for a response")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: tlectl [flags] push <file> | position | last-update")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if err := run(fs.Args(), *broker, *timeout, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "tlectl:", err)
		os.Exit(1)
	}
}

func run(args []string, broker string, timeout time.Duration, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	var payload []byte
	cmd := args[0]
	switch cmd {
	case "push":
		if len(args) != 2 {
			return errors.New("push takes exactly one file argument")
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		payload, err = pushPayload(data, logger)
		if err != nil {
			return err
		}
	case "position", "last-update":
		if len(args) != 1 {
			return fmt.Errorf("%s takes no arguments", cmd)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	client := paho.NewClient(clientOptions(broker, timeout))
	if token := client.Connect(); !token.WaitTimeout(timeout) {
		return fmt.Errorf("connecting to %s: %w", broker, errTimeout)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to %s: %w", broker, err)
	}
	defer client.Disconnect(250)

	if cmd == "push" {
		if err := publish(client, tracker.TopicTLE, payload, timeout); err != nil {
			return err
		}
		fmt.Fprintln(out, "published to", tracker.TopicTLE)
		return nil
	}

	resp, err := ask(client, queries[cmd], timeout)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(resp))
	return nil
}

func clientOptions(broker string, timeout time.Duration) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("tlectl-%d", os.Getpid()))
	opts.SetConnectTimeout(timeout)
	opts.SetCleanSession(true)
	return opts
}

// pushPayload normalizes a file to the two-line ingest payload. Named
// 3-line catalogs are reduced to their first entry.
func pushPayload(data []byte, logger *slog.Logger) ([]byte, error) {
	line1, line2, err := tle.SelectPair(data, 0, logger)
	if err != nil {
		return nil, err
	}
	return []byte(line1 + "\n" + line2), nil
}

func publish(client paho.Client, topic string, payload []byte, timeout time.Duration) error {
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publishing to %s: %w", topic, errTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// ask subscribes to the response topic before sending the request so the
// answer cannot be missed, then waits for the first message.
func ask(client paho.Client, q query, timeout time.Duration) ([]byte, error) {
	responses := make(chan []byte, 1)
	token := client.Subscribe(q.response, 0, func(_ paho.Client, msg paho.Message) {
		select {
		case responses <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("subscribing to %s: %w", q.response, errTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", q.response, err)
	}

	if err := publish(client, q.request, nil, timeout); err != nil {
		return nil, err
	}

	select {
	case resp := <-responses:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("waiting on %s: %w (is a TLE loaded?)", q.response, errTimeout)
	}
}
