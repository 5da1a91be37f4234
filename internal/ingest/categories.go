package ingest

import "strings"

// categoryRule maps keyword sets to a cost category. Order matters: the
// first matching rule wins, so specific rules come before generic ones.
type categoryRule struct {
	keywords []string
	category string
}

var categoryRules = []categoryRule{
	{[]string{"ryanair", "tap", "easyjet", "lufthansa", "air france", "klm", "voo", "flight", "aeroporto", "airport"}, "Transporte Aéreo"},
	{[]string{"hotel", "hostel", "booking.com", "airbnb", "alojamento", "resort", "pousada"}, "Alojamento"},
	{[]string{"comboio", "train", "flixbus", "rede expressos", "autocarro", "bus", "uber", "bolt", "táxi"}, "Transporte Terrestre"},
	{[]string{"rent-a-car", "aluguer de carro", "hertz", "avis", "europcar", "sixt", "goldcar"}, "Aluguer de Viatura"},
	{[]string{"restaurante", "comida", "refeição", "jantar", "almoço", "food", "meal", "restaurant"}, "Restauração"},
	{[]string{"tour", "excursão", "museu", "bilhetes", "tickets", "guia", "passeio"}, "Atividades e Tours"},
	{[]string{"seguro", "insurance", "fidelidade", "allianz", "europ assistance"}, "Seguros"},
	{[]string{"galp", "repsol", "combustível", "gasolina", "gasóleo"}, "Combustível"},
	{[]string{"portagem", "scut", "via verde"}, "Portagens"},
	{[]string{"comissão", "taxa", "serviço"}, "Taxas e Serviços"},
}

const defaultCategory = "Outros Custos"

// Categorize labels a cost from keywords in its supplier and description.
func Categorize(supplier, description string) string {
	text := strings.ToLower(supplier + " " + description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return defaultCategory
}
