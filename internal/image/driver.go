package image

import "context"

// Driver is the OS-level image attach subsystem. Implementations make an
// image container's contents available as a filesystem tree at a working
// directory and end that availability with either commit or discard.
//
// Attach and Detach may block for extended wall-clock time; implementations
// must honor ctx cancellation where the underlying operation allows it.
type Driver interface {
	// Attach makes the image edition available at workingDir. The directory
	// exists before Attach is called.
	Attach(ctx context.Context, handle ImageHandle, workingDir string) error

	// Detach ends availability at workingDir, saving accumulated
	// modifications when commit is true and discarding them otherwise.
	Detach(ctx context.Context, workingDir string, commit bool) error

	// Info reads container metadata without requiring an active session.
	Info(ctx context.Context, path string) (*ImageMetadata, error)
}
