package main

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/rs/zerolog/log"

	"github.com/lensframe/dnncore/internal/arrowexport"
	"github.com/lensframe/dnncore/internal/rtgraph"
)

// graphFlightServer exposes a lowered graph's outputs over Arrow
// Flight's DoGet, one record batch per layer whose name matches the
// ticket, grounded on cmd/fletcher/flight_server.go's
// FletcherFlightServer shape. Only layers the graph actually computed
// (net.Forward succeeded) have an output to serve.
type graphFlightServer struct {
	flight.BaseFlightServer
	net *rtgraph.Net
}

func newGraphFlightServer(net *rtgraph.Net) *graphFlightServer {
	return &graphFlightServer{net: net}
}

func (s *graphFlightServer) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	name := string(ticket.Ticket)
	var match *rtgraph.NodeInfo
	for _, info := range s.net.Describe() {
		if info.Name == name {
			match = &info
			break
		}
	}
	if match == nil {
		return fmt.Errorf("no layer named %q in the lowered graph", name)
	}

	blob, err := s.net.Output(match.ID, 0)
	if err != nil {
		return fmt.Errorf("layer %q has no computed output: %w", name, err)
	}
	rec, err := arrowexport.BlobRecord(name, blob)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := flight.NewRecordWriter(stream)
	if err := writer.Write(rec); err != nil {
		return err
	}
	return writer.Close()
}

func startFlightServer(addr string, net *rtgraph.Net) {
	server := flight.NewFlightServer()
	server.RegisterFlightService(newGraphFlightServer(net))
	if err := server.Init(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to init Flight server")
	}
	log.Info().Str("addr", addr).Msg("serving lowered graph over Arrow Flight")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
