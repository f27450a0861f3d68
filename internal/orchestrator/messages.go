package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ledastudio/tablehost/backend/internal/model/booking"
	"github.com/ledastudio/tablehost/backend/internal/reservation"
)

// phrases holds the scripted reply templates for one language. They answer
// two needs: deterministic confirmation echoes after side effects, and a
// conversational floor when no generation provider is reachable. The guest's
// locked language picks the set; unknown languages fall back to English.
type phrases struct {
	askMissing     string // %s: localized field list
	confirmCreate  string // name, party size, date, time
	confirmCancel  string // date, time
	confirmModify  string // date, time, party size
	created        string // name, party size, date, time
	createdGeneric string
	modified       string // date, time, party size
	cancelled      string
	declined       string
	reask          string
	directYesNo    string
	identityAsk    string // stored name, requested name
	identityPick   string // stored name, requested name
	alternatives   string // %s: slot list
	noAvailability string
	suggestion     string // party size
	suggestRequest string // frequent requests
	timeRange      string
	askIdentifier  string
	findMiss       string
	found          string // date, time, party size
	whatToChange   string
	rateLimited    string
	fallback       string
	actionFailed   string

	fieldNames map[string]string
}

var scripts = map[string]phrases{
	"en": {
		askMissing:     "To book your table I still need: %s.",
		confirmCreate:  "Booking a table for %s, %d guests, on %s at %s. Shall I confirm it?",
		confirmCancel:  "You want to cancel the reservation on %s at %s. Shall I go ahead?",
		confirmModify:  "Changing your reservation to %s at %s for %d guests. Shall I confirm it?",
		created:        "Done! Table booked for %s, %d guests, on %s at %s. See you then!",
		createdGeneric: "Your reservation is confirmed. You will receive the details shortly.",
		modified:       "Updated. Your reservation is now on %s at %s for %d guests.",
		cancelled:      "Your reservation has been cancelled.",
		declined:       "No problem, nothing was booked. What would you like to change?",
		reask:          "Sorry, I did not quite catch that.",
		directYesNo:    "Please answer yes or no.",
		identityAsk:    "I have this number saved under %s, but you said %s. Which name should the reservation use?",
		identityPick:   "Please pick one of the two names exactly: %s or %s.",
		alternatives:   "That slot is fully booked, but I can offer: %s. Would one of these work?",
		noAvailability: "I'm sorry, that slot is fully booked and I found no nearby alternative. Would another day work?",
		suggestion:     "Last time you booked for %d guests. Same again?",
		suggestRequest: "Last time you asked for %s. Should I note that again?",
		timeRange:      "We are open in that window. Which exact time would you like?",
		askIdentifier:  "Could you give me the phone number the reservation was made with?",
		findMiss:       "I could not find a reservation under that number. Could you check it?",
		found:          "I found your reservation: %s at %s for %d guests. What would you like to do with it?",
		whatToChange:   "What would you like to change about your reservation?",
		rateLimited:    "You're sending messages a little too fast. Give me a moment, please.",
		fallback:       "I'm having a technical hiccup. Could you say that again in a moment?",
		actionFailed:   "Something went wrong on my side and nothing was changed. Please try again.",
		fieldNames: map[string]string{
			"name": "your name", "phone": "a phone number", "date": "the date",
			"time": "the time", "partySize": "the number of guests",
		},
	},
	"es": {
		askMissing:     "Para reservar la mesa todavía necesito: %s.",
		confirmCreate:  "Reservo una mesa a nombre de %s, %d personas, el %s a las %s. ¿Lo confirmo?",
		confirmCancel:  "Quiere cancelar la reserva del %s a las %s. ¿Procedo?",
		confirmModify:  "Cambio su reserva al %s a las %s para %d personas. ¿Lo confirmo?",
		created:        "¡Listo! Mesa reservada a nombre de %s, %d personas, el %s a las %s. ¡Les esperamos!",
		createdGeneric: "Su reserva está confirmada. Recibirá los detalles en breve.",
		modified:       "Actualizado. Su reserva queda para el %s a las %s, %d personas.",
		cancelled:      "Su reserva ha sido cancelada.",
		declined:       "Sin problema, no se reservó nada. ¿Qué desea cambiar?",
		reask:          "Perdone, no le he entendido bien.",
		directYesNo:    "Por favor, responda sí o no.",
		identityAsk:    "Tengo este número guardado a nombre de %s, pero usted dijo %s. ¿Qué nombre uso para la reserva?",
		identityPick:   "Por favor, elija uno de los dos nombres exactamente: %s o %s.",
		alternatives:   "Esa hora está completa, pero puedo ofrecerle: %s. ¿Le sirve alguna?",
		noAvailability: "Lo siento, esa hora está completa y no encontré alternativas cercanas. ¿Le serviría otro día?",
		suggestion:     "La última vez reservó para %d personas. ¿Igual que entonces?",
		suggestRequest: "La última vez pidió %s. ¿Lo anoto de nuevo?",
		timeRange:      "Estamos abiertos en ese horario. ¿A qué hora exacta le gustaría?",
		askIdentifier:  "¿Me da el número de teléfono con el que se hizo la reserva?",
		findMiss:       "No encuentro ninguna reserva con ese número. ¿Podría comprobarlo?",
		found:          "Encontré su reserva: %s a las %s para %d personas. ¿Qué desea hacer con ella?",
		whatToChange:   "¿Qué desea cambiar de su reserva?",
		rateLimited:    "Está enviando mensajes demasiado rápido. Deme un momento, por favor.",
		fallback:       "Tengo un problema técnico. ¿Podría repetirlo en un momento?",
		actionFailed:   "Algo falló por mi parte y no se cambió nada. Inténtelo de nuevo, por favor.",
		fieldNames: map[string]string{
			"name": "su nombre", "phone": "un teléfono", "date": "la fecha",
			"time": "la hora", "partySize": "el número de personas",
		},
	},
	"de": {
		askMissing:     "Für die Reservierung brauche ich noch: %s.",
		confirmCreate:  "Ich reserviere einen Tisch für %s, %d Personen, am %s um %s. Soll ich das so bestätigen?",
		confirmCancel:  "Sie möchten die Reservierung am %s um %s stornieren. Soll ich das tun?",
		confirmModify:  "Ich ändere Ihre Reservierung auf den %s um %s für %d Personen. Soll ich das bestätigen?",
		created:        "Erledigt! Tisch reserviert für %s, %d Personen, am %s um %s. Bis dann!",
		createdGeneric: "Ihre Reservierung ist bestätigt. Die Details folgen in Kürze.",
		modified:       "Aktualisiert. Ihre Reservierung ist jetzt am %s um %s für %d Personen.",
		cancelled:      "Ihre Reservierung wurde storniert.",
		declined:       "Kein Problem, es wurde nichts gebucht. Was möchten Sie ändern?",
		reask:          "Entschuldigung, das habe ich nicht ganz verstanden.",
		directYesNo:    "Bitte antworten Sie mit Ja oder Nein.",
		identityAsk:    "Diese Nummer ist bei uns unter %s gespeichert, Sie sagten aber %s. Auf welchen Namen soll die Reservierung laufen?",
		identityPick:   "Bitte wählen Sie genau einen der beiden Namen: %s oder %s.",
		alternatives:   "Dieser Termin ist leider ausgebucht, ich kann anbieten: %s. Passt einer davon?",
		noAvailability: "Dieser Termin ist leider ausgebucht und ich habe keine Alternative in der Nähe gefunden. Ginge ein anderer Tag?",
		suggestion:     "Beim letzten Mal haben Sie für %d Personen reserviert. Wieder so?",
		suggestRequest: "Beim letzten Mal haben Sie um %s gebeten. Soll ich das wieder vermerken?",
		timeRange:      "In dem Zeitraum haben wir geöffnet. Welche genaue Uhrzeit hätten Sie gern?",
		askIdentifier:  "Können Sie mir die Telefonnummer geben, mit der reserviert wurde?",
		findMiss:       "Unter dieser Nummer finde ich keine Reservierung. Können Sie sie prüfen?",
		found:          "Ich habe Ihre Reservierung gefunden: %s um %s für %d Personen. Was möchten Sie damit tun?",
		whatToChange:   "Was möchten Sie an Ihrer Reservierung ändern?",
		rateLimited:    "Sie schreiben etwas zu schnell. Einen Moment bitte.",
		fallback:       "Ich habe gerade ein technisches Problem. Können Sie das gleich noch einmal sagen?",
		actionFailed:   "Bei mir ist etwas schiefgelaufen, es wurde nichts geändert. Bitte versuchen Sie es erneut.",
		fieldNames: map[string]string{
			"name": "Ihren Namen", "phone": "eine Telefonnummer", "date": "das Datum",
			"time": "die Uhrzeit", "partySize": "die Personenzahl",
		},
	},
	"fr": {
		askMissing:     "Pour réserver votre table il me manque encore : %s.",
		confirmCreate:  "Je réserve une table au nom de %s, %d personnes, le %s à %s. Je confirme ?",
		confirmCancel:  "Vous souhaitez annuler la réservation du %s à %s. J'y vais ?",
		confirmModify:  "Je modifie votre réservation pour le %s à %s, %d personnes. Je confirme ?",
		created:        "C'est fait ! Table réservée au nom de %s, %d personnes, le %s à %s. À bientôt !",
		createdGeneric: "Votre réservation est confirmée. Vous recevrez les détails sous peu.",
		modified:       "C'est noté. Votre réservation est maintenant le %s à %s pour %d personnes.",
		cancelled:      "Votre réservation a été annulée.",
		declined:       "Pas de souci, rien n'a été réservé. Que souhaitez-vous changer ?",
		reask:          "Pardon, je n'ai pas bien compris.",
		directYesNo:    "Merci de répondre par oui ou par non.",
		identityAsk:    "Ce numéro est enregistré au nom de %s, mais vous avez dit %s. Quel nom dois-je utiliser ?",
		identityPick:   "Merci de choisir exactement l'un des deux noms : %s ou %s.",
		alternatives:   "Ce créneau est complet, mais je peux proposer : %s. L'un d'eux conviendrait-il ?",
		noAvailability: "Désolé, ce créneau est complet et je n'ai pas trouvé d'alternative proche. Un autre jour conviendrait-il ?",
		suggestion:     "La dernière fois vous aviez réservé pour %d personnes. Pareil ?",
		suggestRequest: "La dernière fois vous aviez demandé %s. Je le note à nouveau ?",
		timeRange:      "Nous sommes ouverts sur ce créneau. Quelle heure exacte souhaitez-vous ?",
		askIdentifier:  "Pouvez-vous me donner le numéro de téléphone utilisé pour la réservation ?",
		findMiss:       "Je ne trouve aucune réservation avec ce numéro. Pouvez-vous le vérifier ?",
		found:          "J'ai trouvé votre réservation : le %s à %s pour %d personnes. Que souhaitez-vous en faire ?",
		whatToChange:   "Que souhaitez-vous changer dans votre réservation ?",
		rateLimited:    "Vous envoyez des messages un peu trop vite. Un instant, s'il vous plaît.",
		fallback:       "J'ai un souci technique. Pouvez-vous répéter dans un instant ?",
		actionFailed:   "Une erreur s'est produite de mon côté, rien n'a été modifié. Merci de réessayer.",
		fieldNames: map[string]string{
			"name": "votre nom", "phone": "un numéro de téléphone", "date": "la date",
			"time": "l'heure", "partySize": "le nombre de personnes",
		},
	},
	"ru": {
		askMissing:     "Чтобы забронировать столик, мне ещё нужно: %s.",
		confirmCreate:  "Бронирую столик на имя %s, %d гостей, %s в %s. Подтверждаете?",
		confirmCancel:  "Вы хотите отменить бронь на %s в %s. Отменяю?",
		confirmModify:  "Переношу вашу бронь на %s в %s, гостей: %d. Подтверждаете?",
		created:        "Готово! Столик забронирован на имя %s, %d гостей, %s в %s. Ждём вас!",
		createdGeneric: "Ваша бронь подтверждена. Детали придут чуть позже.",
		modified:       "Обновлено. Ваша бронь теперь на %s в %s, гостей: %d.",
		cancelled:      "Ваша бронь отменена.",
		declined:       "Хорошо, ничего не бронирую. Что хотите изменить?",
		reask:          "Извините, я не совсем понял.",
		directYesNo:    "Пожалуйста, ответьте да или нет.",
		identityAsk:    "Этот номер записан на имя %s, но вы назвали %s. Какое имя использовать для брони?",
		identityPick:   "Пожалуйста, выберите ровно одно из двух имён: %s или %s.",
		alternatives:   "Это время занято, но могу предложить: %s. Подойдёт какой-то вариант?",
		noAvailability: "К сожалению, это время занято, и рядом свободного нет. Подойдёт другой день?",
		suggestion:     "В прошлый раз вы бронировали на %d гостей. Так же?",
		suggestRequest: "В прошлый раз вы просили %s. Отметить снова?",
		timeRange:      "В это время мы открыты. На какое именно время вам удобно?",
		askIdentifier:  "Назовите, пожалуйста, номер телефона, на который была оформлена бронь.",
		findMiss:       "По этому номеру брони не нахожу. Проверьте его, пожалуйста.",
		found:          "Нашёл вашу бронь: %s в %s, гостей: %d. Что с ней сделать?",
		whatToChange:   "Что вы хотите изменить в брони?",
		rateLimited:    "Вы пишете слишком быстро. Секундочку, пожалуйста.",
		fallback:       "У меня техническая заминка. Повторите, пожалуйста, чуть позже.",
		actionFailed:   "С моей стороны произошла ошибка, ничего не изменилось. Попробуйте ещё раз.",
		fieldNames: map[string]string{
			"name": "ваше имя", "phone": "номер телефона", "date": "дату",
			"time": "время", "partySize": "количество гостей",
		},
	},
	"sr": {
		askMissing:     "Da rezervišem sto, potrebno mi je još: %s.",
		confirmCreate:  "Rezervišem sto na ime %s, %d osoba, %s u %s. Da potvrdim?",
		confirmCancel:  "Želite da otkažete rezervaciju za %s u %s. Da otkažem?",
		confirmModify:  "Menjam vašu rezervaciju na %s u %s za %d osoba. Da potvrdim?",
		created:        "Gotovo! Sto je rezervisan na ime %s, %d osoba, %s u %s. Vidimo se!",
		createdGeneric: "Vaša rezervacija je potvrđena. Detalji stižu uskoro.",
		modified:       "Ažurirano. Vaša rezervacija je sada %s u %s za %d osoba.",
		cancelled:      "Vaša rezervacija je otkazana.",
		declined:       "Nema problema, ništa nije rezervisano. Šta želite da promenite?",
		reask:          "Izvinite, nisam najbolje razumeo.",
		directYesNo:    "Molim vas, odgovorite sa da ili ne.",
		identityAsk:    "Ovaj broj je kod nas zapisan na ime %s, a vi ste rekli %s. Koje ime da koristim?",
		identityPick:   "Molim vas, izaberite tačno jedno od dva imena: %s ili %s.",
		alternatives:   "Taj termin je popunjen, ali mogu da ponudim: %s. Da li neki odgovara?",
		noAvailability: "Nažalost, taj termin je popunjen i nisam našao sličan slobodan. Da li odgovara drugi dan?",
		suggestion:     "Prošli put ste rezervisali za %d osoba. Opet isto?",
		suggestRequest: "Prošli put ste tražili %s. Da zabeležim ponovo?",
		timeRange:      "U tom periodu smo otvoreni. Koje tačno vreme želite?",
		askIdentifier:  "Možete li mi dati broj telefona sa kojim je rezervacija napravljena?",
		findMiss:       "Ne nalazim rezervaciju pod tim brojem. Možete li da proverite?",
		found:          "Našao sam vašu rezervaciju: %s u %s za %d osoba. Šta želite da uradite sa njom?",
		whatToChange:   "Šta želite da promenite na rezervaciji?",
		rateLimited:    "Šaljete poruke malo prebrzo. Sačekajte trenutak, molim vas.",
		fallback:       "Imam tehnički problem. Možete li to ponoviti za koji trenutak?",
		actionFailed:   "Nešto je pošlo po zlu na mojoj strani, ništa nije promenjeno. Pokušajte ponovo.",
		fieldNames: map[string]string{
			"name": "vaše ime", "phone": "broj telefona", "date": "datum",
			"time": "vreme", "partySize": "broj osoba",
		},
	},
}

// script returns the phrase set for a language, falling back to English.
func script(lang string) phrases {
	if p, ok := scripts[lang]; ok {
		return p
	}
	return scripts["en"]
}

func (p phrases) missingList(missing []string) string {
	names := make([]string, 0, len(missing))
	for _, f := range missing {
		if n, ok := p.fieldNames[f]; ok {
			names = append(names, n)
		} else {
			names = append(names, f)
		}
	}
	return fmt.Sprintf(p.askMissing, strings.Join(names, ", "))
}

func (p phrases) slotList(slots []booking.AltSlot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		parts = append(parts, s.Time)
	}
	return fmt.Sprintf(p.alternatives, strings.Join(parts, ", "))
}

// createdText renders the post-booking echo from the engine's record only.
// When a required echo field is missing it falls back to the generic line
// rather than filling the hole from session state.
func (p phrases) createdText(res *reservation.Reservation) string {
	if res == nil || res.Name == "" || res.Date == "" || res.Time == "" || res.PartySize <= 0 {
		return p.createdGeneric
	}
	return fmt.Sprintf(p.created, res.Name, res.PartySize, res.Date, res.Time)
}
