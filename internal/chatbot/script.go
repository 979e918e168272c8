package chatbot

import (
	"fmt"
	"time"
)

// Root menu values.
const (
	ValueSchedule = "schedule"
	ValueView     = "view"
	ValueCancel   = "cancel"
	ValueEnd      = "end"

	ValueConfirm = "confirm"
	ValueRestart = "restart"
)

const (
	textAskOwner       = "Ótimo! Vou ajudá-lo a agendar uma consulta. Qual é o nome do tutor?"
	textAskPet         = "Qual é o nome do pet?"
	textAskPetSelect   = "Qual pet você deseja agendar?"
	textAskDate        = "Escolha uma das datas disponíveis para atendimento:"
	textAskTime        = "Perfeito! Agora escolha um dos horários disponíveis:"
	textAskService     = "Qual é o tipo de serviço necessário?"
	textViewRedirect   = "Você pode visualizar seus agendamentos na aba 'Agendamentos' do menu principal."
	textCancelRedirect = "Para cancelar uma consulta, acesse a aba 'Agendamentos' e selecione a opção de cancelamento."
	textFarewell       = "Tudo bem! Se precisar de algo, é só chamar."
	textBooked         = "✅ Agendamento realizado com sucesso! Você receberá uma confirmação por email."
	textRestarted      = "Agendamento cancelado. Deseja fazer um novo agendamento?"
)

var rootMenu = []Option{
	{Label: "Agendar consulta", Value: ValueSchedule},
	{Label: "Ver agendamentos", Value: ValueView},
	{Label: "Cancelar consulta", Value: ValueCancel},
}

var confirmMenu = []Option{
	{Label: "Sim, confirmar", Value: ValueConfirm},
	{Label: "Não, cancelar", Value: ValueRestart},
}

var bookedMenu = []Option{
	{Label: "Fazer novo agendamento", Value: ValueSchedule},
}

var restartMenu = []Option{
	{Label: "Sim", Value: ValueSchedule},
	{Label: "Não", Value: ValueEnd},
}

// rootValues are the option values accepted in the initial step.
var rootValues = map[string]string{
	ValueSchedule: "Agendar consulta",
	ValueView:     "Ver agendamentos",
	ValueCancel:   "Cancelar consulta",
	ValueEnd:      "Não",
}

func greeting(identity *Identity) string {
	if identity != nil && identity.Name != "" {
		return fmt.Sprintf("Olá, %s! Sou o assistente virtual da Vetec. Como posso ajudar você hoje?", identity.Name)
	}
	return "Olá! Sou o assistente virtual da Vetec. Como posso ajudar você hoje?"
}

// formatDate renders YYYY-MM-DD as DD/MM/YYYY; unparseable input is returned as is.
func formatDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}

func summary(d Draft) string {
	return fmt.Sprintf("Confirme os dados do agendamento:\n\n"+
		"📅 Data: %s\n"+
		"🕐 Horário: %s\n"+
		"👤 Tutor: %s\n"+
		"🐾 Pet: %s\n"+
		"🏥 Serviço: %s\n\n"+
		"Está tudo correto?",
		formatDate(d.Date), d.Time, d.Owner, d.Pet, d.ServiceLabel)
}

func petOptions(pets []Pet) []Option {
	out := make([]Option, 0, len(pets))
	for _, p := range pets {
		out = append(out, Option{Label: fmt.Sprintf("%s (%s)", p.Name, p.Species), Value: p.ID})
	}
	return out
}

func dateOptions(dates []string) []Option {
	out := make([]Option, 0, len(dates))
	for _, d := range dates {
		out = append(out, Option{Label: formatDate(d), Value: d})
	}
	return out
}

func cloneOptions(opts []Option) []Option {
	return append([]Option(nil), opts...)
}
