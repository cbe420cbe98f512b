// Package watcher reports changes to individual files, such as the dirpoll
// configuration file, using fsnotify.
//
// The parent directory of each file is watched rather than the file itself
// so that editors which save by renaming a temp file over the original are
// still observed. Events are debounced so a burst of writes produces one
// batch.
//
// Usage:
//
//	w, err := watcher.NewFileWatcher(200*time.Millisecond, "/etc/dirpoll.yaml")
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Run(ctx) }()
//
//	for batch := range w.Events() {
//	    reload(batch)
//	}
package watcher
