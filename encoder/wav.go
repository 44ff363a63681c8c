package encoder

import "encoding/binary"

const wavHeaderSize = 44

// WAV wraps mono 16-bit PCM in a RIFF header at the package sample
// rate. Samples outside [-1, 1] are clamped.
func WAV(samples []float32) []byte {
	buf := make([]byte, wavHeaderSize+len(samples)*2)
	writeWAVHeader(buf, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(clampInt16(s)))
	}
	return buf
}

func writeWAVHeader(buf []byte, dataSize int) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
}
