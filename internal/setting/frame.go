package setting

// FrameInfo describes the camera frame that triggered a pack.
type FrameInfo struct {
	// Camera is the device name of the camera producing the frame.
	Camera string `json:"camera"`

	// IsSequence is true for frames belonging to a sequence acquisition
	// and false for single snaps.
	IsSequence bool `json:"is_sequence"`

	// CameraSeqNum counts frames produced by this camera.
	CameraSeqNum uint64 `json:"camera_seq_nr"`

	// AcquisitionSeqNum counts frames within the current acquisition.
	AcquisitionSeqNum uint64 `json:"acquisition_seq_nr"`
}
