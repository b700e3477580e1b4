package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trickstertwo/xsinger"
	"github.com/trickstertwo/xsinger/adapter/natspub"
	"github.com/trickstertwo/xsinger/adapter/redisstream"
)

func newNormalizeCmd(c *cli) *cobra.Command {
	var (
		sink    string
		strict  bool
		streams []string
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Re-encode protocol lines from stdin in canonical form",
		Long: `Reads singer messages from stdin and writes their canonical encoding to
the configured sink: stdout, a Redis stream or a NATS subject.

Messages of unknown types are dropped with a warning, or reported as an
error with --strict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("sink") {
				c.cfg.Sink = strings.ToLower(sink)
			}
			if cmd.Flags().Changed("strict") {
				c.cfg.Strict = strict
			}
			w, err := c.openWriter(cmd)
			if err != nil {
				return err
			}

			var mws []xsinger.Middleware
			if len(streams) > 0 {
				mws = append(mws, xsinger.StreamFilter(streams...))
			}
			r := xsinger.NewReader(
				xsinger.WithReaderLogger(c.logger),
				xsinger.WithReaderDiagnostics(xsinger.LogDiagnostics{Logger: c.logger}),
				xsinger.WithStrictTypes(c.cfg.Strict),
				xsinger.WithMiddleware(mws...),
				xsinger.WithReaderObserver(xsinger.ObserverFunc(func(e xsinger.Event) {
					if e.Type == xsinger.EventUnrecognized {
						c.logger.Warn().Str("type", string(e.MessageType)).Str("line", fmt.Sprint(e.Line)).Msg("dropping message of unknown type")
					}
				})),
			)
			consumeErr := r.Consume(cmd.Context(), cmd.InOrStdin(), func(_ context.Context, m xsinger.Message) error {
				return w.Write(m)
			})
			closeErr := w.Close()
			if consumeErr != nil {
				return consumeErr
			}
			if closeErr != nil {
				return closeErr
			}

			m := w.GetMetrics()
			c.logger.Info().
				Str("sink", c.cfg.Sink).
				Str("written", fmt.Sprint(m.Written)).
				Str("bytes", fmt.Sprint(m.Bytes)).
				Str("unrecognized", fmt.Sprint(r.Stats().Unrecognized)).
				Msg("normalize done")
			return nil
		},
	}
	cmd.Flags().StringVar(&sink, "sink", sinkStdout, "output sink: stdout, redis or nats")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on messages of unknown type")
	cmd.Flags().StringSliceVar(&streams, "stream", nil, "only forward these streams (STATE always passes)")
	return cmd
}

// openWriter builds the Writer for the configured sink.
func (c *cli) openWriter(cmd *cobra.Command) (*xsinger.Writer, error) {
	switch c.cfg.Sink {
	case sinkStdout:
		return xsinger.NewWriterBuilder().
			WithSink(bufio.NewWriter(cmd.OutOrStdout())).
			WithLogger(c.logger).
			Build()
	case sinkRedis:
		cfg := redisstream.ConfigFromMap(c.cfg.Redis)
		c.logger.Debug().Str("addr", cfg.Addr).Str("stream", cfg.Stream).Msg("using redis sink")
		return redisstream.New(cfg, redisstream.WithLogger(c.logger))
	case sinkNATS:
		cfg := natspub.ConfigFromMap(c.cfg.NATS)
		c.logger.Debug().Str("url", cfg.URL).Str("subject", cfg.Subject).Msg("using nats sink")
		return natspub.New(cfg, natspub.WithLogger(c.logger))
	}
	return nil, fmt.Errorf("unknown sink %q", c.cfg.Sink)
}
