package main

import (
	"fmt"
	"log/slog"

	"github.com/LdDl/tcg-scanner/config"
	"github.com/LdDl/tcg-scanner/scanner"
	"github.com/LdDl/tcg-scanner/sink"
	"github.com/LdDl/tcg-scanner/source"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan cards in images",
	}
	scanCmd.AddCommand(newScanImageCommand(ctx))
	scanCmd.AddCommand(newScanFramesCommand(ctx))
	return scanCmd
}

func newScanImageCommand(ctx *commandContext) *cobra.Command {
	var replayPath string
	var recordPath string

	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Identify cards in a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if replayPath != "" {
				cfg.Detector.Replay = replayPath
			}
			if err := cfg.ValidateScanning(); err != nil {
				return err
			}
			logger := ctx.loggerValue()

			src, err := source.OpenImage(args[0])
			if err != nil {
				return err
			}
			defer src.Close()
			frame, err := src.Next(cmd.Context())
			if err != nil {
				return err
			}

			det, closer, err := newDetector(cmd.Context(), cfg, replayPath, recordPath, logger)
			if err != nil {
				return err
			}
			defer closer.Close()
			s, err := newScanner(cmd.Context(), cfg, det, logger)
			if err != nil {
				return err
			}

			result, err := s.ScanImage(cmd.Context(), frame.Image)
			if err != nil {
				return errors.Wrapf(err, "Can't scan '%s'", args[0])
			}
			result.Frame = frame.Name

			out := cmd.OutOrStdout()
			if isTerminal(out) {
				if len(result.Tracks) == 0 {
					fmt.Fprintln(out, "No cards found")
					return nil
				}
				fmt.Fprintln(out, renderTracks(result.Tracks))
				return nil
			}
			return sink.NewJSONLines(out).Publish(cmd.Context(), result)
		},
	}

	cmd.Flags().StringVar(&replayPath, "replay", "", "Replay detections from file instead of calling detector")
	cmd.Flags().StringVar(&recordPath, "record", "", "Record detector responses to file")
	return cmd
}

func newScanFramesCommand(ctx *commandContext) *cobra.Command {
	var fps float64
	var replayPath string
	var recordPath string
	var mqttBroker string
	var output string

	cmd := &cobra.Command{
		Use:   "frames <dir>",
		Short: "Track and identify cards over a directory of frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if replayPath != "" {
				cfg.Detector.Replay = replayPath
			}
			if cmd.Flags().Changed("fps") {
				cfg.Processing.FPS = fps
			}
			if mqttBroker != "" {
				cfg.Output.MQTTBroker = mqttBroker
			}
			if output != "" {
				cfg.Output.JSONLines = output
			}
			if err := cfg.ValidateScanning(); err != nil {
				return err
			}
			logger := ctx.loggerValue()

			src, err := source.NewDirectory(args[0], cfg.Processing.FPS)
			if err != nil {
				return err
			}
			defer src.Close()

			det, closer, err := newDetector(cmd.Context(), cfg, replayPath, recordPath, logger)
			if err != nil {
				return err
			}
			defer closer.Close()
			s, err := newScanner(cmd.Context(), cfg, det, logger)
			if err != nil {
				return err
			}

			out, err := newSinks(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer out.Close()

			session := scanner.NewSession(s)
			logger.Info("scanning frames", "dir", args[0], "frames", src.Len(), "session_id", session.ID())
			if err := session.Run(cmd.Context(), src, out); err != nil {
				return err
			}
			stats := session.Stats()
			if isTerminal(cmd.OutOrStdout()) {
				fmt.Fprintf(cmd.OutOrStdout(), "Frames: %d, tracks: %d, identified: %d\n", stats.Frames, stats.Tracks, stats.Identified)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&fps, "fps", 0, "Frame pacing, 0 processes frames as fast as possible")
	cmd.Flags().StringVar(&replayPath, "replay", "", "Replay detections from file instead of calling detector")
	cmd.Flags().StringVar(&recordPath, "record", "", "Record detector responses to file")
	cmd.Flags().StringVar(&mqttBroker, "mqtt", "", "Publish results to MQTT broker (e.g. tcp://localhost:1883)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "JSON lines output path, \"-\" for stdout")
	return cmd
}

func newSinks(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (sink.Multi, error) {
	sinks := sink.Multi{}
	switch {
	case cfg.Output.JSONLines == "-" && isTerminal(cmd.OutOrStdout()):
		sinks = append(sinks, &tableSink{out: cmd.OutOrStdout()})
	case cfg.Output.JSONLines == "-":
		sinks = append(sinks, sink.NewJSONLines(cmd.OutOrStdout()))
	case cfg.Output.JSONLines != "":
		jl, err := sink.OpenJSONLines(cfg.Output.JSONLines)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, jl)
	}
	if cfg.Output.MQTTBroker != "" {
		mq, err := sink.NewMQTT(sink.MQTTOptions{
			Broker:   cfg.Output.MQTTBroker,
			Topic:    cfg.Output.MQTTTopic,
			ClientID: cfg.Output.MQTTClientID,
			QoS:      1,
		}, logger)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, mq)
	}
	return sinks, nil
}
