/*
Package domain contains the core domain models of the phasewise engine.

It defines the phase graph entities, the persisted session aggregate and the
values returned by engine operations. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Phase: A step of a guided session with field requirements and constraints.
  - TransitionEdge: A directed, optionally conditioned edge between phases.
  - Session: The persisted aggregate (current phase, fields, visits, timers).
  - Result: What a Submit, Collect or Transition call produced.
*/
package domain
