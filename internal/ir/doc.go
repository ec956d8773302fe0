// Package ir provides the intermediate representation of compiled goals.
//
// This package contains type definitions only. The compiler lowers AST goals
// into these types and the emitter consumes them exactly once; nothing keeps
// IR values after emission.
//
// Key design constraints:
//   - Rules refer to their goal by name, never by pointer
//   - Variables are rule-local and addressed by index
//   - Conditions are a closed set: *FuncCondition and *BinaryCondition
package ir
