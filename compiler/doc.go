/*
Process of transpilation

ESTree JSON ->
	decode (estree) ->
Syntax Tree ->
	lower (front, scope) ->
Intermediate Representation (ir) ->
	verify ->
	serialize (irdoc) | format ->
IR Document

Every function of a file becomes one ir.FunctionInfo.
Nested functions come before the function enclosing them
and the top-level code is the function called main.
*/
package compiler
