/*
The sync package keeps the project files consistent across three layers with
different lifetimes:

1) The persistent store -- The durable copy of every file, keyed by path.
   It outlives the process, and is the only layer that survives a restart.
2) The runtime filesystem -- The working copy that everything reads from and
   writes to. It starts out empty every time the runtime boots, so it's
   populated by mounting the persistent store.
3) The file tree -- The sorted snapshot of the runtime filesystem that's
   shown to users. It's rebuilt after every structural change.

Changes always hit the runtime filesystem first, and are then mirrored into
the persistent store. If the runtime rejects a change, nothing is persisted.

The Orchestrator owns the runtime lifecycle: booting (at most once at a
time), mounting persisted files, and resetting everything back to an empty
project.

The sync algorithm only deals with files. Empty directories aren't
persisted, so they don't survive a reboot.
*/
package sync
