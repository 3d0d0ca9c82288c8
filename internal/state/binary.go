package state

import "encoding/binary"

func putUint64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

func getUint64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }
