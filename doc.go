// Patch compiled method bodies before they run
//
// splice rewrites the instruction stream of selected methods of a host
// program: it finds an anchor instruction, inserts a block of new
// instructions relative to it and binds new jump labels to existing
// instructions so branches land where they should after the insertion.
//
// Patches are declared as Descriptors collected in a Catalog. A Driver
// applies them once, at start up:
//
//	drv := splice.NewDriver(splice.NewResolver(host), host)
//	for _, o := range drv.Apply(catalog) {
//		...
//	}
//
// A descriptor that can't be applied (the method isn't there, the anchor
// doesn't match) is logged and skipped. The host keeps running its original
// code for that method and every other descriptor still applies.
//
// Limitations:
//   - Offsets are measured against one compiled shape of the host. A new
//     host version will usually show up as "anchor not found".
//   - Nothing is ever removed or rewritten, patches only add instructions.
//   - There is no way to undo a catalog patch.
package splice
