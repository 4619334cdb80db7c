// Package bytecode defines the data model shared by the Xeno compiler and
// virtual machine: the fixed 8-bit opcode set, the instruction record, the
// tagged value representation, and the disassembler.
//
// The opcode numbering is part of the on-wire bytecode contract. Programs
// cross-compiled by other toolchains must load bit-exactly, so values are
// never renumbered or reused.
//
// Instructions are fixed-width records of (opcode, arg1, arg2). arg1 carries
// integer immediates, float bit patterns, string-table indices, branch
// targets, pin numbers or millisecond counts depending on the opcode; arg2
// is reserved.
//
// String-typed values hold a 16-bit index into the program's string table
// rather than the text itself, so values are trivially copyable and the
// table owns all text.
package bytecode
