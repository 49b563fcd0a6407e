// Package lang implements the razr template language: a lexer, a parser
// producing a typed syntax tree, a compiler producing an executable unit,
// and an interpreter that renders units with single-parent inheritance.
//
// # Syntax
//
// Every tag starts with @. Text outside tags is output verbatim.
//
//	@name                      print a variable (escaped)
//	@user.name|upper           attributes and filters in short form
//	@(a + b ~ "!")             print an expression
//	@@                         a literal @
//	@if(x > 0) ... @elseif(x < 0) ... @else ... @endif
//	@foreach(items as k => v) ... @endforeach
//	@while(n < 3) ... @endwhile
//	@set(a = 1, b = a + 1)
//	@block("name") ... @endblock
//	@block("title", "Default title")
//	@extends("base.razr")
//
// # Pipeline
//
// An [Environment] turns source into output in stages:
//
//	source → Lexer → TokenStream → Parser → Module → Compiler → Unit → Template
//
// Each stage is exposed on the environment ([Environment.Tokenize],
// [Environment.Parse], [Environment.Compile]) for tooling. Compiled units
// are cached by the loader's cache key; [Environment.Render] loads, compiles,
// and renders a template by name.
//
// # Inheritance
//
// A template that extends another may only define blocks (and set
// variables). Rendering it renders the parent with the child's blocks
// overriding the parent's; parent() inside a block outputs the parent's
// version of that block.
//
// # Errors
//
// Every error is an [*Error] deriving from [ErrSyntax], [ErrRuntime],
// [ErrLogic], or [ErrLoader], attributed to the template name and line where
// known.
package lang
