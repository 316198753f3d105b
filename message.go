package main

const (
	MsgDetectionCompleted = "Detection completed. Found %d objects"
	MsgResponseCreated    = "Successfully processed image and created response"
	MsgProcessingFailed   = "Error processing image: %v"

	MsgNoResult       = "detector returned no result for the image"
	MsgEmptyUpload    = "uploaded file is empty"
	MsgMissingFile    = "missing upload field \"file\""
	MsgExpectedImage  = "expected a binary image message"
	MsgUploadTooLarge = "upload exceeds %d MB"

	StatusHealthy = "healthy"
)
