// Package media provides the video encoder used to assemble frame sequences
// and the process runner abstraction behind it.
package media

import "context"

// Encoder defines the interface for assembling an image sequence into a video.
// Implementations should use ffmpeg or similar tools for media encoding.
type Encoder interface {
	// EncodeSequence reads the frames matched by req.Pattern in numeric order
	// and writes a video to req.Output. A non-zero exit of the underlying
	// encoder is reported as *FFmpegError carrying the captured stderr.
	EncodeSequence(ctx context.Context, req EncodeRequest) error
}
