package constants

// PipelineState is the UI feedback state of the intake orchestrator.
type PipelineState string

const (
	StateIdle              PipelineState = "IDLE"
	StateRecognizing       PipelineState = "RECOGNIZING"
	StateExtracting        PipelineState = "EXTRACTING"
	StateResolvingLocation PipelineState = "RESOLVING_LOCATION"
	StateError             PipelineState = "ERROR" // transient, always followed by IDLE
)

// CaseStatus is the review state of a persisted report. New reports start as CaseMissing.
type CaseStatus string

const (
	CaseMissing CaseStatus = "Desaparecida"
	CaseFound   CaseStatus = "Encontrada"
	CaseClosed  CaseStatus = "Encerrada"
)
