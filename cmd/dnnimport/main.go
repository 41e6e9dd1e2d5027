// Command dnnimport parses a protobuf descriptor/payload pair or a
// legacy Torch-style module stream and reports the structure it finds
// — a self-describing message tree in the former case, a module tree
// (and, when a consumer has linked concrete layer kernels, a lowered
// runtime graph) in the latter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lensframe/dnncore/internal/arrowexport"
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/dnnmetrics"
	"github.com/lensframe/dnncore/internal/dnntrace"
	"github.com/lensframe/dnncore/internal/rtgraph"
)

var (
	descriptorPath = flag.String("descriptor", "", "Path to a binary FileDescriptorSet")
	payloadPath    = flag.String("payload", "", "Path to the message payload to parse")
	rootName       = flag.String("root", "", "Fully-qualified root message name (protobuf mode)")
	legacyPath     = flag.String("legacy", "", "Path to a legacy Torch-style module stream")
	format         = flag.String("format", "binary", "Payload format: \"binary\" or \"text\" (protobuf mode only)")
	depth          = flag.Int("depth", 8, "Descriptor nesting bound (spec's depth-bounded MessageDescriptor)")
	listenAddr     = flag.String("listen", "", "Address to serve the lowered graph over Arrow Flight (e.g. :9090), legacy mode only")
	enableOTel     = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	dumpCBOR       = flag.Bool("dump-cbor", false, "Dump the lowered graph as CBOR instead of a text listing (legacy mode only)")
	dumpArrow      = flag.Bool("dump-arrow", false, "Print each computed layer output as an Arrow tensor (legacy mode, requires linked kernels)")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *enableOTel {
		shutdown, err := dnntrace.Init("dnnimport")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	switch {
	case *legacyPath != "":
		runLegacy()
	case *descriptorPath != "" && *payloadPath != "":
		runProtobuf()
	default:
		log.Fatal().Msg("need either -legacy, or both -descriptor and -payload")
	}
}

func runLegacy() {
	_, span := dnntrace.StartPhase(context.Background(), dnntrace.PhaseLegacyRead)
	defer span.End()

	buf, err := os.ReadFile(*legacyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *legacyPath).Msg("failed to read legacy stream")
	}

	start := time.Now()
	res, err := importLegacy(buf)
	dnnmetrics.ParseDuration.WithLabelValues(dnntrace.PhaseLegacyRead).Observe(time.Since(start).Seconds())
	if err != nil {
		dnnmetrics.ImportErrors.WithLabelValues(errorKind(err)).Inc()
		log.Fatal().Err(err).Msg("legacy import failed")
	}

	outFormat := *format
	if *dumpCBOR {
		outFormat = "cbor"
	}
	if err := dumpLegacyResult(os.Stdout, res, outFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to dump legacy result")
	}

	if *dumpArrow {
		if res.Net == nil {
			log.Warn().Msg("-dump-arrow needs a lowered+forwarded graph; none is available without linked layer kernels")
		} else {
			dumpArrowTensors(os.Stdout, res.Net)
		}
	}

	if *listenAddr != "" {
		if res.Net == nil {
			log.Fatal().Msg("-listen needs a lowered graph; this binary has no layer kernels linked in, so lowering stopped at the module tree")
		}
		startFlightServer(*listenAddr, res.Net)
	}
}

func runProtobuf() {
	_, span := dnntrace.StartPhase(context.Background(), dnntrace.PhaseBinaryParse)
	defer span.End()

	descBytes, err := os.ReadFile(*descriptorPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *descriptorPath).Msg("failed to read descriptor set")
	}
	payloadBytes, err := os.ReadFile(*payloadPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *payloadPath).Msg("failed to read payload")
	}

	start := time.Now()
	schema, err := importProtobuf(descBytes, payloadBytes, *rootName, *format, *depth)
	dnnmetrics.ParseDuration.WithLabelValues(dnntrace.PhaseBinaryParse).Observe(time.Since(start).Seconds())
	if err != nil {
		dnnmetrics.ImportErrors.WithLabelValues(errorKind(err)).Inc()
		log.Fatal().Err(err).Msg("protobuf import failed")
	}

	if *dumpCBOR {
		log.Warn().Msg("-dump-cbor serves the lowered-graph dump (legacy mode); protobuf mode always prints the parsed message tree")
	}
	if err := printMessage(os.Stdout, schema, 0); err != nil {
		log.Fatal().Err(err).Msg("failed to print parsed message")
	}
}

// errorKind returns the dnnerrors.Kind name carried by err, the label
// ImportErrors counts by, or "Unknown" when err carries no Kind.
func errorKind(err error) string {
	var dnnErr *dnnerrors.Error
	if errors.As(err, &dnnErr) {
		return dnnErr.Kind.String()
	}
	return "Unknown"
}

// dumpArrowTensors prints each layer's computed output as an Arrow
// tensor's shape and strides. Output forwards the net on first use; a
// layer whose output cannot be obtained is skipped with a warning
// rather than failing the whole dump.
func dumpArrowTensors(w *os.File, net *rtgraph.Net) {
	for _, info := range net.Describe() {
		blob, err := net.Output(info.ID, 0)
		if err != nil {
			log.Warn().Err(err).Str("layer", info.Name).Msg("skipping -dump-arrow for layer with no computed output")
			continue
		}
		tsr := arrowexport.BlobTensor(blob)
		fmt.Fprintf(w, "%s\tshape=%v\tstrides=%v\n", info.Name, tsr.Shape(), tsr.Strides())
	}
}
