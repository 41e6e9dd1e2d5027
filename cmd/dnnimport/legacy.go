package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lensframe/dnncore/internal/dnndump"
	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/dnnmetrics"
	"github.com/lensframe/dnncore/internal/graphlower"
	"github.com/lensframe/dnncore/internal/legacy"
	"github.com/lensframe/dnncore/internal/moduletree"
	"github.com/lensframe/dnncore/internal/rtgraph"
)

// legacyResult carries whichever stage the legacy pipeline reached.
// Lowering to a runtime graph needs layer constructors linked in by
// the consumer (spec §1) — this binary ships none, so Net is commonly
// nil and Tree is what gets dumped.
type legacyResult struct {
	Tree *moduletree.Module
	Net  *rtgraph.Net
}

func importLegacy(buf []byte) (*legacyResult, error) {
	stream := legacy.NewStream(buf)
	raw, err := stream.ReadRoot()
	if err != nil {
		return nil, fmt.Errorf("read legacy stream: %w", err)
	}

	tree, err := moduletree.Build(raw)
	if err != nil {
		return nil, fmt.Errorf("build module tree: %w", err)
	}

	net, err := graphlower.Lower(tree)
	if err != nil {
		// graphlower wraps the registry's NotFound for an unregistered
		// type in an Internal error, so match it anywhere in the chain.
		if errors.Is(err, dnnerrors.ErrNotFound) {
			log.Warn().Err(err).Msg("graph lowering stopped at an unregistered layer type; forward execution needs a consumer that links concrete kernels via internal/layer.Register — dumping the module tree instead")
			return &legacyResult{Tree: tree}, nil
		}
		return nil, fmt.Errorf("lower module tree: %w", err)
	}
	return &legacyResult{Tree: tree, Net: net}, nil
}

func dumpLegacyResult(w io.Writer, res *legacyResult, format string) error {
	if res.Net != nil {
		for _, info := range res.Net.Describe() {
			dnnmetrics.LayersLowered.WithLabelValues(info.TypeName).Inc()
		}
		if format == "cbor" {
			return dnndump.Write(w, res.Net)
		}
		for _, info := range res.Net.Describe() {
			fmt.Fprintf(w, "%d\t%s\t%s\tinputs=%v\n", info.ID, info.TypeName, info.Name, info.Inputs)
		}
		return nil
	}
	return printModuleTree(w, res.Tree, 0)
}

func printModuleTree(w io.Writer, m *moduletree.Module, depth int) error {
	indent := strings.Repeat("  ", depth)
	label := m.ClassName
	if m.APIType != "" {
		label = fmt.Sprintf("%s (%s)", m.ClassName, m.APIType)
	}
	if _, err := fmt.Fprintf(w, "%s%s params=%d blobs=%d\n", indent, label, len(m.Params), len(m.Blobs)); err != nil {
		return err
	}
	for _, child := range m.Children {
		if err := printModuleTree(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
