package metadata

import "github.com/vantapoint/trackcore/trackcore/errs"

// SelectAudioFile implements the "Vorbis-only" default policy (spec.md
// §4.5 step 3): among files, pick the Vorbis encoding whose quality is
// the highest that does not exceed preferred. If no Vorbis file is at or
// below preferred, falls back to the lowest Vorbis quality available
// (matching the teacher's VorbisOnlyAudioQuality, which never refuses a
// track purely for being encoded above the preference). Returns
// errs.ErrUnsupportedFormat if the file list has no Vorbis entry at all.
func SelectAudioFile(files []AudioFile, preferred Quality) (AudioFile, error) {
	var best AudioFile
	haveBest := false
	var lowest AudioFile
	haveLowest := false

	for _, f := range files {
		if !f.Format.IsVorbis() {
			continue
		}

		q := f.Format.vorbisQuality()

		if !haveLowest || q < lowest.Format.vorbisQuality() {
			lowest = f
			haveLowest = true
		}

		if q <= preferred && (!haveBest || q > best.Format.vorbisQuality()) {
			best = f
			haveBest = true
		}
	}

	if haveBest {
		return best, nil
	}
	if haveLowest {
		return lowest, nil
	}
	return AudioFile{}, errs.ErrUnsupportedFormat
}
