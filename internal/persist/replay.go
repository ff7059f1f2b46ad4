package persist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/boson/simcore/internal/wire"
)

// replayMagic opens every replay file; the last byte is the format version.
var replayMagic = []byte{'B', 'O', 'S', 'R', 1}

// ReplayFile is an order journal kept in a local file, one wire frame per
// order. It needs no database, so a run can always be replayed.
type ReplayFile struct {
	f  *os.File
	bw *bufio.Writer
}

// CreateReplayFile truncates path and writes the file header.
func CreateReplayFile(path string) (*ReplayFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create replay: %w", err)
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(replayMagic); err != nil {
		f.Close()
		return nil, fmt.Errorf("write replay header: %w", err)
	}
	return &ReplayFile{f: f, bw: bw}, nil
}

// Append writes records and flushes them to the file. The session id is not
// stored; one file holds one session.
func (r *ReplayFile) Append(_ context.Context, _ int64, records []OrderRecord) error {
	w := wire.NewWriter()
	for _, rec := range records {
		w.Reset()
		w.WriteD(rec.Seq)
		w.WriteQ(rec.Tick)
		w.WriteBytes(rec.Payload)
		if err := wire.WriteFrame(r.bw, w.Bytes()); err != nil {
			return fmt.Errorf("replay seq %d: %w", rec.Seq, err)
		}
	}
	return r.bw.Flush()
}

func (r *ReplayFile) Close() error {
	if err := r.bw.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// ReadReplayFile returns every record of a replay file in file order.
func ReadReplayFile(path string) ([]OrderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	hdr := make([]byte, len(replayMagic))
	if _, err := io.ReadFull(br, hdr); err != nil || !bytes.Equal(hdr, replayMagic) {
		return nil, fmt.Errorf("%s: not a replay file", path)
	}

	var out []OrderRecord
	for {
		frame, err := wire.ReadFrame(br)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("replay record %d: %w", len(out), err)
		}
		rd := wire.NewReader(frame)
		rec := OrderRecord{Seq: rd.ReadD(), Tick: rd.ReadQ()}
		rec.Payload = rd.ReadRest()
		if err := rd.Err(); err != nil {
			return nil, fmt.Errorf("replay record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
