// Package overlay owns the renderable content placed at tracked anchors.
//
// Responsibilities: classifying a marker as video, still image, or tint;
// creating and destroying overlay nodes (and their backing media players);
// and show/hide transitions. The low-level 3D renderer and the media
// player are external collaborators behind the Renderer and MediaPlayer
// interfaces.
//
// Ownership rule: overlay nodes are keyed by anchor id, never by marker
// name. Two anchors for the same marker hold two independent nodes, so
// re-detection can never leak or fight over a node.
package overlay
