package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeRecordNotFound:      "Registro {{.RecordKey}} não encontrado",
		CodeRecordAlreadyExists: "Registro {{.RecordKey}} já existe",
		CodeAuthFailure:         "Somente o proprietário pode alterar o registro {{.RecordKey}}",
		CodePermissionDenied:    "Não há permissão de acesso para esta identidade no registro {{.RecordKey}}",
		CodeInvalidMetadata:     "O campo {{.Field}} deve ter entre {{.Min}} e {{.Max}} bytes",
		CodeInvalidMetrics:      "A métrica deve ser maior que 0 e menor que 1000000000",
		CodeInvalidTaxonomy:     "A taxonomia deve ter de 1 a 10 rótulos com 1 a 32 bytes cada",
		CodeInvalidOperator:     "Identidade de operador inválida",
	},
}
