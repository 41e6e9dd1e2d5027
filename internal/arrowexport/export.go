// Package arrowexport turns a runtime graph's output blob into an
// Arrow record batch, the same zero-copy FixedSizeList<float32>
// construction the teacher's forwardToLongbow uses for embedding
// vectors, and ships it either as an IPC stream or over Arrow Flight
// to a Longbow-style sink.
package arrowexport

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/arrow/tensor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lensframe/dnncore/internal/dnnerrors"
	"github.com/lensframe/dnncore/internal/layer"
)

// flightSinkMaxFailures and flightSinkResetTimeout tune the breaker
// guarding FlightSink.Put: three consecutive rejections trip it, and
// it probes again after five seconds.
const (
	flightSinkMaxFailures  = 3
	flightSinkResetTimeout = 5 * time.Second
)

// BlobTensor projects blob onto Arrow's own dense tensor type for the
// CLI's -dump-arrow path: blob.Shape becomes the tensor's shape
// verbatim and strides are derived row-major, the same dims+strides
// framing the Legacy Tensor Stream Reader already uses internally.
// The returned tensor aliases blob.Data.
func BlobTensor(blob *layer.Blob) *tensor.Float32 {
	shape := make([]int64, len(blob.Shape))
	for i, d := range blob.Shape {
		shape[i] = int64(d)
	}
	strides := make([]int64, len(shape))
	stride := int64(4) // bytes per float32
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	buf := memory.NewBufferBytes(arrow.Float32Traits.CastToBytes(blob.Data))
	data := array.NewData(arrow.PrimitiveTypes.Float32, len(blob.Data), []*memory.Buffer{nil, buf}, nil, 0, 0)
	defer data.Release()
	return tensor.NewFloat32(data, shape, strides, nil)
}

// BlobRecord builds a one-column Arrow record batch from blob: its
// leading dimension becomes the row count, the remaining dimensions
// flatten into a FixedSizeList<float32> per row, column named
// columnName. The returned record aliases blob.Data; callers must
// keep blob alive for as long as the record is in use.
func BlobRecord(columnName string, blob *layer.Blob) (arrow.RecordBatch, error) {
	if len(blob.Shape) == 0 {
		return nil, dnnerrors.Parsef("blob has no dimensions to export")
	}
	rows := blob.Shape[0]
	if rows == 0 {
		return nil, dnnerrors.Parsef("blob's leading dimension is empty")
	}
	cols := len(blob.Data) / rows

	dataBuf := memory.NewBufferBytes(arrow.Float32Traits.CastToBytes(blob.Data))
	fslType := arrow.FixedSizeListOf(int32(cols), arrow.PrimitiveTypes.Float32)

	valuesData := array.NewData(arrow.PrimitiveTypes.Float32, rows*cols, []*memory.Buffer{nil, dataBuf}, nil, 0, 0)
	defer valuesData.Release()

	fslData := array.NewData(fslType, rows, []*memory.Buffer{nil}, []arrow.ArrayData{valuesData}, 0, 0)
	defer fslData.Release()

	col := array.NewFixedSizeListData(fslData)
	defer col.Release()

	schema := arrow.NewSchema([]arrow.Field{{Name: columnName, Type: fslType}}, nil)
	return array.NewRecordBatch(schema, []arrow.Array{col}, int64(rows)), nil
}

// WriteIPC streams rec to w using the Arrow IPC stream format.
func WriteIPC(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		return err
	}
	return writer.Close()
}

// FlightSink forwards exported record batches to a Longbow-style
// Arrow Flight endpoint, grounded on internal/client/flight.go's
// FlightClient. Put calls run behind a circuit breaker (grounded on
// internal/client/circuit_breaker.go) so a stalled sink fails fast
// instead of blocking every subsequent export attempt.
type FlightSink struct {
	client  flight.Client
	conn    *grpc.ClientConn
	breaker *circuitBreaker
}

// DialFlightSink connects to an Arrow Flight server at addr.
func DialFlightSink(addr string) (*FlightSink, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &FlightSink{
		client:  flight.NewClientFromConn(conn, nil),
		conn:    conn,
		breaker: newCircuitBreaker(flightSinkMaxFailures, flightSinkResetTimeout),
	}, nil
}

// Put sends rec under datasetName via Arrow Flight's DoPut. Rejected
// outright (without touching the network) once the breaker is open.
func (s *FlightSink) Put(ctx context.Context, datasetName string, rec arrow.RecordBatch) error {
	if !s.breaker.allow() {
		return dnnerrors.Internalf("flight sink circuit open, dataset %q not sent", datasetName)
	}

	if err := s.put(ctx, datasetName, rec); err != nil {
		s.breaker.failure()
		return err
	}
	s.breaker.success()
	return nil
}

func (s *FlightSink) put(ctx context.Context, datasetName string, rec arrow.RecordBatch) error {
	desc := &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{datasetName}}

	stream, err := s.client.DoPut(ctx)
	if err != nil {
		return err
	}
	writer := flight.NewRecordWriter(stream)
	writer.SetFlightDescriptor(desc)
	if err := writer.Write(rec); err != nil {
		return err
	}
	return writer.Close()
}

// Close tears down the underlying gRPC connection.
func (s *FlightSink) Close() error {
	return s.conn.Close()
}
