package i18n

var messagesPtBR = map[Code]string{
	CodeInvalidRequest:                 "Não foi possível ler o corpo da requisição.",
	CodePlanDateRangeInverted:          "A data final não pode ser anterior à data inicial.",
	CodePlanDateRangeTooLong:           "O intervalo de datas é limitado a {{.MaxDays}} dias.",
	CodePlanInvalidDuration:            "A duração da reunião deve ser um número positivo de minutos.",
	CodePlanEmptyActivityType:          "Um tipo de atividade é obrigatório.",
	CodePlanInvalidStatusTransition:    "Um plano {{.From}} não pode passar para {{.To}}.",
	CodePlanStatusDisallowsOp:          "O status do plano não permite esta operação.",
	CodePlanNotArchivable:              "Apenas planos concluídos ou cancelados podem ser arquivados.",
	CodeInviteeEmptyContactRef:         "Cada convidado precisa de uma referência de contato.",
	CodeInviteeInvalidAttendance:       "O tipo de presença deve ser must_attend ou nice_to_have.",
	CodeSlotMalformed:                  "O horário {{.Slot}} não está no formato YYYY-MM-DD_HH:MM.",
	CodeSlotOutsideWindow:              "Reuniões só são agendadas entre 08:00 e 21:00.",
	CodeSlotUnaligned:                  "Os horários começam na hora cheia ou meia hora.",
	CodeSlotOutsideRange:               "O horário escolhido está fora do intervalo de datas do plano.",
	CodeAvailabilityEmptyParticipantID: "Um participante é obrigatório.",
	CodeAvailabilityInvalidSource:      "A origem da disponibilidade deve ser calendar, manual ou mixed.",
	CodeAvailabilityNoProvenance:       "Cada horário precisa de pelo menos uma marca de origem.",
	CodeGrantInvalid:                   "O link de convite não é válido.",
	CodeGrantExpired:                   "O link de convite expirou.",
	CodeGrantMismatch:                  "O link de convite não corresponde a este plano.",
	CodeGrantRevoked:                   "O link de convite não está mais ativo.",
	CodeNotFound:                       "Não encontrado.",
	CodeTransientStorage:               "Ocorreu um problema temporário de armazenamento. Tente novamente.",
	CodeCancellationPartial:            "O plano foi cancelado, mas a limpeza dos convites ainda está pendente.",
	CodeGatewayUnavailable:             "O serviço de notificações está indisponível. Tente novamente.",
}
