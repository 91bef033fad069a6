// Package agents instrada le domande degli utenti verso agenti specializzati
// (nutrition, planning, simple) e ne compone le chiamate al modello.
//
// Il Manager classifica la domanda per parole chiave, in un ordine di priorità
// fisso, e la passa all'agente scelto. Gli agenti possono scomporre la domanda
// in sotto-chiamate eseguite in parallelo e sintetizzarne i risultati.
//
// Esempio di utilizzo base:
//
//	manager, err := agents.NewManager(agents.Declarations(agents.Deps{
//	    Orchestrator: orchestrator,
//	    Fast:         orchestrator,
//	    Quality:      orchestrator,
//	}), agents.AgentSimple)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := manager.Route(ctx, "Сколько белка нужно после тренировки?", agents.AgentAuto)
//	fmt.Println(result.Answer)
package agents
