/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package dict

import (
	"encoding/binary"
	"fmt"
)

// ApplyUpdate runs the lock-free Sync Engine pass described in spec.md
// §4.D/§4.F: it replays any new stream records onto the local replica, and
// falls back to a full-dump load when it detects it has been lapped. Every
// read-visible Dict operation calls this first.
func (d *Dict) ApplyUpdate() error {
	if d.isClosed() {
		return errAlreadyClosed()
	}
	return d.applyUpdateLocked(false)
}

func (d *Dict) applyUpdateLocked(forceDump bool) error {
	if forceDump || d.replica.localDumpCounter.Load() < d.cb.dumpCounter() {
		if err := d.loadFullDumpCoalesced(); err != nil {
			return err
		}
	}

	if err := d.replayStream(); err != nil {
		return d.recoverFromFramingError(err)
	}
	return nil
}

// replayStream advances the local replica over every stream frame not yet
// applied, starting from localStreamPos. It returns the first framing error
// verbatim and makes no attempt at recovery — that is recoverFromFramingError's
// job — so it is also safe to call again once a caller has taken the lock.
func (d *Dict) replayStream() error {
	for {
		streamEnd := d.cb.streamEnd()
		pos := d.replica.localStreamPos.Load()
		if pos >= streamEnd {
			return nil
		}

		payloadLen, err := validateFrame(d.streamSeg.Bytes(), pos)
		if err != nil {
			return err
		}
		frameEnd := pos + frameHeaderSize + payloadLen
		payload := d.streamSeg.Bytes()[pos+frameHeaderSize : frameEnd]
		rec, err := decodePayload(payload)
		if err != nil {
			return err
		}

		d.replica.apply(rec)
		d.replica.localStreamPos.Store(frameEnd)
		d.notifyObservers(rec)
	}
}

// recoverFromFramingError implements spec.md §4.D step 3: if the writer has
// already lapped us onto a newer dump, restart there; otherwise acquire the
// lock and retry the parse from the failed position once, surfacing
// Corruption only if the retry also fails. Acquiring the lock rules out a
// torn read racing a concurrent writer — the failed bytes are re-read once
// the writer (if any) has released.
func (d *Dict) recoverFromFramingError(cause error) error {
	if d.cb.dumpCounter() > d.replica.localDumpCounter.Load() {
		return d.applyUpdateLocked(true)
	}
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer d.lock.Release()

	if d.cb.dumpCounter() > d.replica.localDumpCounter.Load() {
		return d.applyUpdateLocked(true)
	}
	if err := d.replayStream(); err != nil {
		return errCorruption(fmt.Sprintf("retry under lock failed: %v (original: %v)", err, cause))
	}
	return nil
}

// loadFullDumpCoalesced attaches and decodes the current full dump,
// coalescing concurrent callers within this process via singleflight so
// only one of them actually does the work (SPEC_FULL.md §5).
func (d *Dict) loadFullDumpCoalesced() error {
	_, err, _ := d.dumpLoadGroup.Do(d.name, func() (any, error) {
		return nil, d.loadFullDump()
	})
	return err
}

func (d *Dict) loadFullDump() error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		name := d.cb.dumpName()
		counterBefore := d.cb.dumpCounter()

		var seg *Segment
		var err error
		if d.cb.dumpStaticSize() > 0 {
			seg = d.dumpSeg
			if seg == nil {
				seg, err = AttachSegment(d.name + "_full")
			}
		} else {
			if name == "" {
				return errCorruption("dynamic dump has no name yet")
			}
			seg, err = AttachSegment(name)
		}
		if err != nil {
			lastErr = err
			continue
		}

		entries, err := decodeDumpSegment(seg, d.opts.CompressDumps)
		if d.cb.dumpStaticSize() == 0 {
			seg.Close()
		} else {
			d.dumpSeg = seg
		}
		if err != nil {
			lastErr = err
			continue
		}

		d.replica.replaceAll(entries)
		d.replica.localDumpCounter.Store(counterBefore)
		d.replica.localStreamPos.Store(0)
		return nil
	}

	// final attempt under the lock, per spec.md §4.E consume step 2.
	if err := d.lock.Acquire(); err != nil {
		return err
	}
	defer d.lock.Release()
	if d.cb.dumpCounter() > d.replica.localDumpCounter.Load() {
		return d.loadFullDump()
	}
	return errCorruption("full dump unreachable after retries: " + lastErr.Error())
}

func decodeDumpSegment(seg *Segment, compressed bool) (map[string][]byte, error) {
	buf := seg.Bytes()
	payloadLen, err := validateFrame(buf, 0)
	if err != nil {
		return nil, err
	}
	payload := buf[frameHeaderSize : frameHeaderSize+payloadLen]
	if compressed {
		payload, err = decompressDump(payload)
		if err != nil {
			return nil, err
		}
	}
	return deserializeDump(payload)
}

// appendUpdate writes a framed (op, key, value) record (spec.md §4.D
// Append). Callers must hold the lock. When the stream would overflow, a
// full dump is produced instead and subsumes the pending update, since the
// caller is expected to have already applied it to the local replica.
func (d *Dict) appendUpdate(rec record) error {
	frame := encodeFrame(rec)
	pos := d.cb.streamEnd()
	if uint64(pos)+uint64(len(frame)) > uint64(len(d.streamSeg.Bytes())) {
		return d.produceFullDump()
	}
	newPos, ok := appendRecord(d.streamSeg.Bytes(), pos, rec)
	if !ok {
		return d.produceFullDump()
	}
	d.cb.setStreamEnd(newPos)
	// the record is already in the local replica; don't replay it later.
	d.replica.localStreamPos.Store(newPos)
	d.notifyObservers(rec)
	return nil
}

// produceFullDump implements spec.md §4.E Produce. Caller must hold the
// lock and have already applied the pending update to the local replica.
func (d *Dict) produceFullDump() error {
	entries := d.replica.snapshot()
	raw := serializeDump(entries)
	if d.opts.CompressDumps {
		raw = compressDump(raw)
	}
	frame := encodeFrame0xFF(raw)

	staticSize := d.cb.dumpStaticSize()
	oldName := d.cb.dumpName()

	if staticSize > 0 {
		if uint32(len(frame)) > staticSize {
			return errDumpTooLarge(uint32(len(frame)), staticSize)
		}
		seg := d.dumpSeg
		var err error
		if seg == nil {
			seg, err = OpenOrCreateSegment(d.name+"_full", staticSize)
			if err != nil {
				return err
			}
			d.dumpSeg = seg
		}
		copy(seg.Bytes(), frame)
	} else {
		newName := newDumpName(d.name)
		newSeg, err := CreateSegment(newName, uint32(len(frame)))
		if err != nil {
			return err
		}
		copy(newSeg.Bytes(), frame)
		d.cb.setDumpName(newName)
		if d.dumpSeg != nil {
			d.dumpSeg.Close()
		}
		d.dumpSeg = newSeg
	}

	d.cb.setDumpCounter(d.cb.dumpCounter() + 1)
	d.cb.setStreamEnd(0)
	d.replica.localStreamPos.Store(0)
	d.replica.localDumpCounter.Store(d.cb.dumpCounter())

	if staticSize == 0 && oldName != "" && oldName != d.cb.dumpName() {
		d.spawnBackground(func() { UnlinkSegment(oldName, true) })
	}
	return nil
}

// encodeFrame0xFF wraps an already-serialized payload in the shared
// 0xFF len 0xFF frame header used by both stream records and full dumps.
func encodeFrame0xFF(payload []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = frameSentinel
	binary.LittleEndian.PutUint32(frame[1:5], uint32(len(payload)))
	frame[5] = frameSentinel
	copy(frame[6:], payload)
	return frame
}
