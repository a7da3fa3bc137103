package enums

// GenerationStage enumerates the advisory pipeline stages surfaced to clients.
// Stages drive only the ephemeral progress record, never the durable status.
type GenerationStage string

const (
	GenerationStageQueued                GenerationStage = "queued"
	GenerationStageGeneratingPrimary     GenerationStage = "generating_primary"
	GenerationStageGeneratingTranslation GenerationStage = "generating_secondary_translation"
	GenerationStageGeneratingAssets      GenerationStage = "generating_assets"
	GenerationStageRenderingDocuments    GenerationStage = "rendering_documents"
	GenerationStageSendingNotifications  GenerationStage = "sending_notifications"
	GenerationStageCompleted             GenerationStage = "completed"
	GenerationStageError                 GenerationStage = "error"
)

// String implements fmt.Stringer.
func (s GenerationStage) String() string {
	return string(s)
}

// Percent maps each stage onto the coarse progress scale shown to users.
func (s GenerationStage) Percent() int {
	switch s {
	case GenerationStageQueued:
		return 5
	case GenerationStageGeneratingPrimary:
		return 25
	case GenerationStageGeneratingTranslation:
		return 50
	case GenerationStageGeneratingAssets:
		return 65
	case GenerationStageRenderingDocuments:
		return 80
	case GenerationStageSendingNotifications:
		return 90
	case GenerationStageCompleted:
		return 100
	default:
		return 0
	}
}
