// Package reasoning decides what to do when a quality gate fails.
//
// It has three parts:
//
//   - Classifier: determines the most likely failure category from gate
//     issues, regex matches on the raw item text, and stage-level score
//     checks, and estimates item complexity from text features.
//   - Selector: picks a retry strategy for a failure category, generates
//     typed collaborator parameter modifications, estimates success
//     probability, and decides whether a retry is worth it.
//   - Learning: a process-wide, mutex-guarded table of per-strategy success
//     rates maintained as an exponential moving average, blended into the
//     selector's probability estimate, plus a bounded retry history ring.
//
// Model ties the three together behind the surface the pipeline consumes.
package reasoning
