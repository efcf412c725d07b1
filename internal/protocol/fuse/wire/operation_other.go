//go:build !darwin

package wire

// decodePlatform rejects opcodes this platform's kernel never emits.
func decodePlatform(opcode Opcode, _ *decoder) (Operation, error) {
	return nil, &DecodeError{Opcode: opcode, Reason: "unknown opcode"}
}
