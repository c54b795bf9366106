package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Persona selects the fixed system instruction and sampling constants
type Persona string

const (
	// PersonaWarm is the relay persona: warm, short, encouraging, no hard topic lock
	PersonaWarm Persona = "warm"
	// PersonaStrict is locked to biblical topics and refuses everything else
	PersonaStrict Persona = "strict"
	// PersonaConcise is the short friendly persona of the chat popup
	PersonaConcise Persona = "concise"
)

// RefusalMessage is the fixed answer of PersonaStrict to off-topic questions
const RefusalMessage = "Desculpe, como assistente especializado em assuntos bíblicos e espirituais cristãos, não posso responder a essa pergunta. Posso ajudar com alguma dúvida sobre a Bíblia ou a fé cristã?"

// Sampling holds generation constants. Zero values mean "provider default".
type Sampling struct {
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Profile is the instruction text and sampling for one persona
type Profile struct {
	Instruction string
	Sampling    Sampling
}

const warmInstruction = `Você é um Assistente Bíblico de IA acolhedor e carismático, projetado para oferecer orientação espiritual breve e calorosa. Seu objetivo é ajudar os usuários a compreender melhor as Escrituras e encontrar respostas rápidas para questões espirituais. Mantenha suas respostas concisas, amigáveis e encorajadoras. Use uma linguagem simples e acessível, evitando jargões teológicos complexos. Cite brevemente passagens bíblicas relevantes quando apropriado. Sempre termine suas respostas com uma nota positiva ou uma palavra de encorajamento.`

const strictInstruction = `Você é um Assistente Bíblico de IA estritamente focado em assuntos bíblicos, espirituais e religiosos cristãos. Siga estas regras rigorosamente:

1. Responda APENAS a perguntas relacionadas à Bíblia, fé cristã, espiritualidade cristã e práticas religiosas cristãs.
2. Se uma pergunta ou tópico estiver fora deste escopo, responda INVARIAVELMENTE com: "` + RefusalMessage + `"
3. Mantenha suas respostas:
   - Objetivas e diretas
   - Calorosas e acolhedoras
   - Completas (sem palavras cortadas)
   - Máximo de 350 caracteres
   - Sempre fundamentadas nas escrituras
4. Cite brevemente passagens bíblicas relevantes quando apropriado.
5. Use linguagem simples e acessível.
6. Não discuta outras religiões ou crenças.
7. Não ofereça conselhos médicos, legais ou financeiros.

Lembre-se: sua única função é fornecer orientação espiritual cristã concisa e completa.`

const conciseInstruction = `Você é um Assistente Bíblico de IA amigável e conciso. Forneça respostas curtas e diretas, como em um diálogo natural. Use linguagem simples e acessível. Cite brevemente passagens bíblicas relevantes quando apropriado. Mantenha um tom encorajador e positivo.`

var profiles = map[Persona]Profile{
	PersonaWarm: {
		Instruction: warmInstruction,
	},
	PersonaStrict: {
		Instruction: strictInstruction,
		Sampling:    Sampling{Temperature: 0.7, MaxTokens: 350},
	},
	PersonaConcise: {
		Instruction: conciseInstruction,
		Sampling:    Sampling{Temperature: 0.7, MaxTokens: 150},
	},
}

// UnknownPersonaError is returned for a persona name with no profile
type UnknownPersonaError struct {
	Name string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q (want one of %s)", e.Name, strings.Join(Names(), "|"))
}

// Lookup returns the profile for p
func Lookup(p Persona) (Profile, error) {
	profile, ok := profiles[p]
	if !ok {
		return Profile{}, &UnknownPersonaError{Name: string(p)}
	}
	return profile, nil
}

// ParsePersona validates a persona name; the empty string yields def
func ParsePersona(name string, def Persona) (Persona, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return def, nil
	}
	p := Persona(name)
	if _, ok := profiles[p]; !ok {
		return "", &UnknownPersonaError{Name: name}
	}
	return p, nil
}

// Names lists the known personas in sorted order
func Names() []string {
	names := make([]string, 0, len(profiles))
	for p := range profiles {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
