package model

// DispatchContext carries everything the pipeline resolved for one request.
// Built once after commit resolution, immutable afterwards, and owned by the
// single invocation that created it.
type DispatchContext struct {
	HeadCommit string // Resolved commit the check run is anchored to
	PreviewURL string // Absolute preview address passed to the workflow
	Project    string // Project name
	Ref        string // Branch or commit id the workflow is dispatched on
	CheckRunID int64  // Check run created before dispatch, 0 until created
}
