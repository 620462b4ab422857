// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// MinBlockBytes is the minimum opcode-block length that yields a signature.
// Shorter blocks (fewer than 4 opcode bytes) carry too little structure to
// discriminate and are dropped.
const MinBlockBytes = 4

// DigestHexLen is the hex-digest width signatures are truncated to: a
// 40-character prefix of a SHA-256 digest, preserving the on-wire width of
// a SHA-1 hex digest while using a modern primitive (see DESIGN.md).
const DigestHexLen = 40

// blockSeparator is the required literal separating a method's normalized
// descriptor prefix from its opcode-window content.
const blockSeparator = "B["

// blockSignature hashes one opcode window: classDesc || methodDesc || "B[" || block.
func blockSignature(classDesc, methodDesc string, block []byte) string {
	h := sha256.New()
	h.Write([]byte(classDesc))
	h.Write([]byte(methodDesc))
	h.Write([]byte(blockSeparator))
	h.Write(block)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:DigestHexLen]
}
