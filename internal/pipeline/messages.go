package pipeline

// CrisisPhone is the 24/7 Teléfono de la Esperanza line.
const CrisisPhone = "717 003 717"

const crisisResources = "🔴 **AYUDA INMEDIATA**:\n" +
	"• Teléfono de la Esperanza: " + CrisisPhone + " (24/7)\n" +
	"• Emergencias: 112\n" +
	"• Urgencias hospitalarias\n" +
	"No estás solo/a. Hay ayuda disponible."

const (
	CrisisReply = "💙 Veo que estás pasando por un momento difícil. " + crisisResources

	NoDataReply = "💙 No encontré datos específicos para tu consulta. ¿Podrías reformularla o preguntar sobre otra comunidad o diagnóstico?"

	QueryErrorReply = "💙 Tuve problemas para consultar los datos. Por favor, intenta con una pregunta más específica sobre comunidades autónomas o diagnósticos."

	InterpretErrorReply = "💙 He consultado los datos pero tengo dificultades para interpretarlos. Contacta con profesionales para más información."

	// GreetingReply answers general messages when no provider is configured.
	GreetingReply = "💙 Soy Acompaña, tu asistente de salud mental. Puedo ayudarte con información sobre recursos en España y datos de salud mental. ¿En qué puedo ayudarte?"

	// GeneralErrorReply answers general messages when the provider call fails.
	GeneralErrorReply = "💙 Hola, soy Acompaña. Puedo ayudarte con información sobre salud mental en España. ¿En qué puedo ayudarte?"

	rawDataPrefix = "💙 Basándome en los datos: "
)

// FallbackReply is the text returned when a reply could not be produced at all.
func FallbackReply(isUrgent bool) string {
	if isUrgent {
		return "💙 Veo que estás pasando por un momento difícil. Contacta inmediatamente: " + CrisisPhone
	}
	return "💙 Lo siento, hay problemas técnicos. Por favor, intenta de nuevo."
}
