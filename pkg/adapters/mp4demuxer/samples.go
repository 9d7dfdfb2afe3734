package mp4demuxer

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/mp4"
)

// sampleIsNonSync is the sample_is_non_sync_sample bit of trun/trex sample flags.
const sampleIsNonSync = 0x00010000

// sampleRef locates one sample's data in the file.
type sampleRef struct {
	offset int64
	size   uint32
	dts    uint64
	dur    uint32
	cto    int32
	sync   bool
}

func progressiveSamples(stbl *mp4.StblBox) ([]sampleRef, error) {
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("decode mp4: no stsz box found")
	}
	count := stbl.Stsz.SampleNumber
	if count == 0 {
		return nil, nil
	}
	if stbl.Stsc == nil {
		return nil, fmt.Errorf("decode mp4: no stsc box found")
	}
	if stbl.Stco == nil && stbl.Co64 == nil {
		return nil, fmt.Errorf("decode mp4: no stco or co64 box found")
	}

	var syncSamples map[uint32]bool
	if stbl.Stss != nil {
		syncSamples = make(map[uint32]bool, len(stbl.Stss.SampleNumber))
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	samples := make([]sampleRef, 0, count)
	var offset int64
	var prevSize uint32

	for nr := uint32(1); nr <= count; nr++ {
		chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
		if err != nil {
			return nil, fmt.Errorf("decode mp4: sample %d: %w", nr, err)
		}
		if int(nr) == firstInChunk {
			chunkOffset, err := chunkOffset(stbl, chunkNr)
			if err != nil {
				return nil, fmt.Errorf("decode mp4: sample %d: %w", nr, err)
			}
			offset = int64(chunkOffset)
		} else {
			offset += int64(prevSize)
		}

		size := stbl.Stsz.GetSampleSize(int(nr))
		prevSize = size

		s := sampleRef{
			offset: offset,
			size:   size,
			// An absent stss means every sample is a sync sample.
			sync: syncSamples == nil || syncSamples[nr],
		}
		if stbl.Stts != nil {
			s.dts, s.dur = stbl.Stts.GetDecodeTime(nr)
		}
		if stbl.Ctts != nil {
			s.cto = stbl.Ctts.GetCompositionTimeOffset(nr)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (uint64, error) {
	if stbl.Stco != nil {
		return stbl.Stco.GetOffset(chunkNr)
	}
	if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
		return 0, fmt.Errorf("chunk %d out of range", chunkNr)
	}
	return stbl.Co64.ChunkOffset[chunkNr-1], nil
}

// fragmentedSamples walks every moof of the track. Sample data stays in the
// file; offsets come from the moof position, tfhd base data offset and trun
// data offset.
func fragmentedSamples(mp4File *mp4.File, trackID uint32) ([]sampleRef, error) {
	var trex *mp4.TrexBox
	if mp4File.Init != nil && mp4File.Init.Moov != nil && mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var samples []sampleRef
	var trackTime uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || !hasTrack(frag, trackID) {
				continue
			}
			// next is where data continues when a trun has no data offset.
			var next uint64
			if frag.Mdat != nil {
				next = frag.Mdat.PayloadAbsoluteOffset()
			}

			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd == nil {
					continue
				}
				base := frag.Moof.StartPos
				if traf.Tfhd.HasBaseDataOffset() {
					base = traf.Tfhd.BaseDataOffset
				}
				ours := traf.Tfhd.TrackID == trackID
				if ours && traf.Tfdt != nil {
					trackTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				for _, trun := range traf.Truns {
					trun.AddSampleDefaultValues(traf.Tfhd, trex)
					pos := next
					if trun.HasDataOffset() {
						pos = uint64(int64(base) + int64(trun.DataOffset))
					}
					next = pos + trun.SizeOfData()
					if !ours {
						continue
					}

					for _, s := range trun.Samples {
						samples = append(samples, sampleRef{
							offset: int64(pos),
							size:   s.Size,
							dts:    trackTime,
							dur:    s.Dur,
							cto:    s.CompositionTimeOffset,
							sync:   s.Flags&sampleIsNonSync == 0,
						})
						pos += uint64(s.Size)
						trackTime += uint64(s.Dur)
					}
				}
			}
		}
	}
	return samples, nil
}

func hasTrack(frag *mp4.Fragment, trackID uint32) bool {
	for _, traf := range frag.Moof.Trafs {
		if traf.Tfhd != nil && traf.Tfhd.TrackID == trackID {
			return true
		}
	}
	return false
}
