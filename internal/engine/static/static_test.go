package static

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func buildMinimalPE(sectionNames []string, sectionEntropyBytes [][]byte) []byte {
	header := make([]byte, 0x40)
	lfanew := uint32(0x40)
	binary.LittleEndian.PutUint32(header[0x3C:0x40], lfanew)

	coffHeader := make([]byte, 20)
	binary.LittleEndian.PutUint16(coffHeader[2:4], uint16(len(sectionNames)))
	sizeOptHeader := uint16(0)
	binary.LittleEndian.PutUint16(coffHeader[16:18], sizeOptHeader)

	buf := append([]byte{}, header...)
	buf = append(buf, []byte("PE\x00\x00")...)
	buf = append(buf, coffHeader...)

	sectionTableOff := len(buf)
	sectionEntries := make([]byte, 40*len(sectionNames))
	buf = append(buf, sectionEntries...)

	rawPtr := uint32(len(buf))
	rawData := [][]byte{}
	rawPtrs := []uint32{}
	for _, data := range sectionEntropyBytes {
		rawPtrs = append(rawPtrs, rawPtr)
		rawData = append(rawData, data)
		rawPtr += uint32(len(data))
	}
	for _, data := range rawData {
		buf = append(buf, data...)
	}

	for i, name := range sectionNames {
		off := sectionTableOff + i*40
		nameBytes := make([]byte, 8)
		copy(nameBytes, name)
		copy(buf[off:off+8], nameBytes)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(len(sectionEntropyBytes[i])))
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(0x1000*(i+1)))
		binary.LittleEndian.PutUint32(buf[off+16:off+20], uint32(len(sectionEntropyBytes[i])))
		binary.LittleEndian.PutUint32(buf[off+20:off+24], rawPtrs[i])
	}

	return buf
}

func TestWalkPESections(t *testing.T) {
	data := buildMinimalPE(
		[]string{".text", ".data", ".rsrc"},
		[][]byte{
			bytesRepeat('A', 64),
			bytesRepeat('B', 64),
			bytesRepeat('C', 64),
		},
	)
	sections, err := WalkPESections(data)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, ".text", sections[0].Name)
}

func TestIsLikelyPacked_FewSections(t *testing.T) {
	assert.True(t, IsLikelyPacked([]PESection{{Name: ".text"}}, 7.0))
}

func TestIsLikelyPacked_KnownPackerName(t *testing.T) {
	sections := []PESection{
		{Name: "UPX0", Entropy: 1.0}, {Name: "UPX1", Entropy: 1.0}, {Name: ".rsrc", Entropy: 1.0},
	}
	assert.True(t, IsLikelyPacked(sections, 7.0))
}

func TestFindEmbeddedArtifacts(t *testing.T) {
	b := append(bytesRepeat('a', 600), []byte("MZ")...)
	found := FindEmbeddedArtifacts(b)
	require.Len(t, found, 1)
	assert.Equal(t, int64(600), found[0].Offset)
}

func TestEngine_ScanCleanText(t *testing.T) {
	e := New(DefaultConfig())
	det, err := e.Scan([]byte("hello world, this is a clean text file\n"), "note.txt")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBenign, det.Verdict)
}

func TestEngine_ScanTooLarge(t *testing.T) {
	e := New(Config{MaxFileSize: 10, EntropyThreshold: 7, MinStringLength: 4, MaxStringLength: 256})
	_, err := e.Scan(bytesRepeat('a', 100), "big.bin")
	require.Error(t, err)
}

func TestExtractStrings(t *testing.T) {
	strs := ExtractStrings([]byte("ab\x00cdefg\x01hi"), 3, 256)
	assert.Equal(t, []string{"cdefg"}, strs)
}

func bytesRepeat(c byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = c
	}
	return out
}
